package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterEmptyRuleKeepsEverything(t *testing.T) {
	f, err := NewFilter("")
	require.NoError(t, err)
	assert.True(t, f.Keep(makeSpan("aaa", "svc", "op", false)))
	assert.True(t, f.Keep(makeSpan("bbb", "svc", "op", true)))
}

func TestFilterErrorRule(t *testing.T) {
	f, err := NewFilter("error")
	require.NoError(t, err)
	assert.True(t, f.Keep(makeSpan("aaa", "svc", "op", true)))
	assert.False(t, f.Keep(makeSpan("bbb", "svc", "op", false)))
}

func TestFilterServiceAndDuration(t *testing.T) {
	f, err := NewFilter(`service == "checkout" || duration_ms > 100`)
	require.NoError(t, err)

	slow := makeSpan("aaa", "billing", "op", false)
	slow.DurationMs = 250
	fast := makeSpan("bbb", "billing", "op", false)
	fast.DurationMs = 3

	assert.True(t, f.Keep(makeSpan("ccc", "checkout", "op", false)))
	assert.True(t, f.Keep(slow))
	assert.False(t, f.Keep(fast))
}

func TestFilterTagAccess(t *testing.T) {
	f, err := NewFilter(`tags["http.status_code"] == 500`)
	require.NoError(t, err)

	span := makeSpan("aaa", "svc", "op", true)
	span.Tags = map[string]any{"http.status_code": int64(500)}
	assert.True(t, f.Keep(span))

	span.Tags["http.status_code"] = int64(200)
	assert.False(t, f.Keep(span))

	// spans without the tag do not match
	assert.False(t, f.Keep(makeSpan("bbb", "svc", "op", false)))
}

func TestFilterInvalidRule(t *testing.T) {
	_, err := NewFilter("error &&")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter rule")
}
