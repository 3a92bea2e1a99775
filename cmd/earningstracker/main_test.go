package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/domain"
)

func TestCommandTree(t *testing.T) {
	t.Parallel()

	for _, path := range [][]string{
		{"run"},
		{"serve"},
		{"summary"},
		{"subscribers", "add"},
		{"subscribers", "remove"},
		{"history", "clear"},
		{"settings", "set-interval"},
		{"ledger", "reset"},
		{"ledger", "unmark"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestReportPrintsResultAndFailsOnUnsuccessfulCycle(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, report(cmd, domain.Succeeded(domain.OutcomeNoNew, "nothing new")))
	assert.Contains(t, out.String(), `"outcome": "no_new"`)

	out.Reset()
	err := report(cmd, domain.Failed(domain.OutcomeSendFailed, "send failed", nil))
	require.EqualError(t, err, "send failed")
	assert.Contains(t, out.String(), `"success": false`)
}
