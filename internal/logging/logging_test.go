package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pos.log")
	log, err := New("info", path)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("order sent")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `"msg":"order sent"`)
	assert.False(t, strings.Contains(out, "hidden"), "debug line written at info level")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("chatty", "")
	assert.Error(t, err)
}
