package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(embedMigrations, "*.sql")
	require.NoError(t, err)
	require.Contains(t, files, "00001_create_users.sql")
	require.Contains(t, files, "00002_create_refresh_tokens.sql")
}
