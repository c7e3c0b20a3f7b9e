package archive

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LocalFS(t *testing.T) {
	s, err := New(Config{Type: "localfs", Path: filepath.Join(t.TempDir(), "out")})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s)

	s, err = New(Config{Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s, "localfs is the default")
}

func TestNew_S3(t *testing.T) {
	s, err := New(Config{Type: "s3", S3: S3Config{Bucket: "artifacts", Region: "us-east-1"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, s)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"localfs without path", Config{Type: "localfs"}},
		{"s3 without bucket", Config{Type: "s3"}},
		{"unknown type", Config{Type: "ftp", Path: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCleanPath(t *testing.T) {
	valid := map[string]string{
		"SPY/run/SPY_trades.xlsx": "SPY/run/SPY_trades.xlsx",
		"a//b/./c.txt":            "a/b/c.txt",
		"a/../b.txt":              "b.txt",
	}
	for in, want := range valid {
		got, err := cleanPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "/etc/passwd", "../secret", "a/../../b", `a\b`} {
		_, err := cleanPath(in)
		assert.Error(t, err, in)
	}
}
