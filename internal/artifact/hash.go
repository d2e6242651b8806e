package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
)

const (
	// HashLength is the number of hex characters kept from the digest.
	HashLength = 8

	hashChunkSize = 8192
)

// HashFile streams path through SHA-256 in fixed-size chunks and returns the
// first HashLength hex characters of the digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path is a temp file we just wrote
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil))[:HashLength], nil
}
