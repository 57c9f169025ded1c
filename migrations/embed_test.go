package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsCarryBothDirections(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		raw, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		body := string(raw)
		assert.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestInitialSchemaConstraints(t *testing.T) {
	raw, err := fs.ReadFile(FS, "00001_init.sql")
	require.NoError(t, err)
	body := string(raw)

	assert.Contains(t, body, "UNIQUE (student_id, course_id)")
	assert.Contains(t, body, "UNIQUE (name)")
	assert.Contains(t, body, "REFERENCES courses (id) ON DELETE CASCADE")
	assert.Contains(t, body, "NUMERIC(5,2)")
}
