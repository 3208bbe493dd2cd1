// tracewire CLI - span collector and instrumentation toolkit.
package main

import (
	"github.com/tracewire/tracewire/pkg/cli"
)

func main() {
	cli.Execute()
}
