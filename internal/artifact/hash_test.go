package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha8(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:HashLength]
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
	}{
		{name: "empty", content: nil},
		{name: "small", content: []byte("a,b\n1,2\n")},
		{name: "exactly one chunk", content: bytes.Repeat([]byte{'x'}, hashChunkSize)},
		{name: "several chunks", content: bytes.Repeat([]byte("0123456789"), 3*hashChunkSize/10+7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			require.NoError(t, os.WriteFile(path, tt.content, 0o600))

			got, err := HashFile(path)
			require.NoError(t, err)
			assert.Len(t, got, HashLength)
			assert.Equal(t, sha8(tt.content), got)
		})
	}
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "vanished.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
