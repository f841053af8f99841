package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandNameReturnsFirstKey(t *testing.T) {
	name, err := commandName(map[string]any{"find": "widgets", "filter": map[string]any{}})
	require.NoError(t, err)
	assert.Equal(t, "find", name)
}

func TestCommandNameRejectsEmptyDocument(t *testing.T) {
	_, err := commandName(map[string]any{})
	require.Error(t, err)
}

func TestAllowlistRejectsMutatingCommands(t *testing.T) {
	for _, name := range []string{"drop", "dropDatabase", "createUser", "shutdown"} {
		_, ok := allowedCommands[name]
		assert.Falsef(t, ok, "expected %q to not be on the read-only allowlist", name)
	}
}

func TestAllowlistAdmitsReadOnlyCommands(t *testing.T) {
	for _, name := range []string{"find", "count", "distinct", "aggregate", "listCollections", "dbStats", "collStats", "ping"} {
		_, ok := allowedCommands[name]
		assert.Truef(t, ok, "expected %q to be on the read-only allowlist", name)
	}
}
