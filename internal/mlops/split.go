package mlops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	starctx "github.com/leapstack-labs/leaptrack/internal/starlark"
)

// Split holds the paths of a train/test split.
type Split struct {
	Train string `json:"train"`
	Test  string `json:"test"`
}

// SplitTimeSeries writes rows dated before cutoff to "train_split" and rows
// on or after cutoff to "test_split". Rows with a missing date belong to
// neither side.
func (s *Service) SplitTimeSeries(ctx context.Context, path, dateCol, cutoff string) (*Split, error) {
	cut, err := dataops.ParseDate(cutoff)
	if err != nil {
		return nil, fmt.Errorf("invalid cutoff: %w", err)
	}

	t, err := dataops.ReadTable(path)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, c := range t.Columns {
		if c == dateCol {
			idx = i
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", dataops.ErrColumnNotFound, dateCol)
	}

	train := artifact.Table{Columns: t.Columns}
	test := artifact.Table{Columns: t.Columns}
	for i, row := range t.Rows {
		if starctx.IsNull(row[idx]) {
			continue
		}
		d, err := dataops.ParseDate(row[idx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if d.Before(cut) {
			train.Rows = append(train.Rows, row)
		} else {
			test.Rows = append(test.Rows, row)
		}
	}

	trainPath, err := s.artifacts.SaveTable(ctx, train, PrefixTrainSplit, subdir)
	if err != nil {
		return nil, err
	}
	testPath, err := s.artifacts.SaveTable(ctx, test, PrefixTestSplit, subdir)
	if err != nil {
		return nil, err
	}

	s.logger.Info("split dataset",
		slog.String("cutoff", cutoff),
		slog.Int("train_rows", train.Len()),
		slog.Int("test_rows", test.Len()),
	)
	return &Split{Train: trainPath, Test: testPath}, nil
}
