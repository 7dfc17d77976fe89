package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			SetLevel(in)
			assert.Equal(t, want, levelVar.Level())
		})
	}
}

func TestOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetLevel("info")

	SetLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Equal(t, "warn", Level())
}

func TestInfoBlockSplitsLines(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	InfoBlock("\nline one\nline two\n")
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("level=INFO")))
}

func TestSetFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	SetFormat("JSON")
	defer SetFormat("text")

	Warnf("grid %s replaced", "BTCUSDT")
	assert.Contains(t, buf.String(), `"msg":"grid BTCUSDT replaced"`)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestOpenFile(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		w, err := OpenFile(FileOptions{})
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("creates parent dir", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "bot.log")
		w, err := OpenFile(FileOptions{Path: path})
		require.NoError(t, err)
		defer w.Close()
		_, err = w.Write([]byte("hello\n"))
		assert.NoError(t, err)
		assert.FileExists(t, path)
	})
}
