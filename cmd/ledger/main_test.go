package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func TestRootCommandTree(t *testing.T) {
	root := newRootCommand()

	for _, path := range [][]string{{"serve"}, {"integrity"}, {"jobs", "trigger"}, {"jobs", "stats"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	integrity, _, err := root.Find([]string{"integrity"})
	require.NoError(t, err)
	for _, flag := range []string{"since", "as-of", "repair", "json"} {
		assert.NotNil(t, integrity.Flags().Lookup(flag), flag)
	}
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "exit status 10", exitError{code: 10}.Error())
}
