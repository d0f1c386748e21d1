package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "snapshot", "toggle", "diag"} {
		require.True(t, names[want], "missing subcommand %s", want)
	}

	snapshot, _, err := root.Find([]string{"snapshot"})
	require.NoError(t, err)
	require.NotNil(t, snapshot.Flags().Lookup("fresh"))
	require.Equal(t, "all", snapshot.Flags().Lookup("filter").DefValue)
}

func TestCacheScope(t *testing.T) {
	require.Equal(t, "odoo.local:8069", cacheScope("http://odoo.local:8069/"))
	require.Equal(t, "plain-host", cacheScope("plain-host"))
}
