package mlops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
)

// SaveModel persists an encoded model as "<algorithm>_model".
func (s *Service) SaveModel(ctx context.Context, enc artifact.ModelEncoder, algorithm string) (string, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		return "", fmt.Errorf("algorithm name is empty")
	}
	return s.artifacts.SaveModel(ctx, artifact.Model{Encoder: enc}, algorithm+"_model", subdir)
}

// SaveModelFile copies a model file produced by an external trainer into
// the run. The file extension is kept.
func (s *Service) SaveModelFile(ctx context.Context, path, algorithm string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		return "", fmt.Errorf("algorithm name is empty")
	}

	enc := artifact.ModelEncoderFunc(func(w io.Writer) error {
		f, err := os.Open(path) //nolint:gosec // path given on the command line
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(w, f)
		return err
	})

	m := artifact.Model{Encoder: enc, Format: strings.TrimPrefix(filepath.Ext(path), ".")}
	return s.artifacts.SaveModel(ctx, m, algorithm+"_model", subdir)
}
