package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracewire/tracewire/pkg/collector"
)

type tokenFlags struct {
	secret  string
	subject string
	ttl     time.Duration
}

var tokenFlagVals tokenFlags

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the collector query API",
	Example: `  tracewire token --secret $TRACEWIRE_AUTH_SECRET --subject alice
  curl -H "Authorization: Bearer $(tracewire token --secret s3cret)" localhost:4318/v1/spans`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &tokenFlagVals
		if f.secret == "" {
			return fmt.Errorf("--secret is required")
		}
		token, err := collector.NewToken(f.secret, f.subject, f.ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	f := &tokenFlagVals
	tokenCmd.Flags().StringVar(&f.secret, "secret", "", "HS256 signing secret (must match the collector's auth secret)")
	tokenCmd.Flags().StringVar(&f.subject, "subject", "cli", "Token subject")
	tokenCmd.Flags().DurationVar(&f.ttl, "ttl", time.Hour, "Token lifetime")
}
