package mlops

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
	"github.com/leapstack-labs/leaptrack/internal/runctx"
	"github.com/leapstack-labs/leaptrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	runs := runctx.NewManager(root,
		runctx.WithClock(func() time.Time { return start }),
		runctx.WithSnapshotFiles(nil),
	)
	logger := testutil.NewTestLogger(t)
	return New(artifact.NewService(runs, artifact.WithLogger(logger)), WithLogger(logger)),
		filepath.Join(root, "20240101_120000")
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func prefixOf(t *testing.T, path string) string {
	t.Helper()
	rec, err := artifact.ParseFileName(filepath.Base(path))
	require.NoError(t, err)
	return rec.Prefix
}

func TestSplitTimeSeries(t *testing.T) {
	svc, runDir := newTestService(t)
	path := writeCSV(t, "id,admit_date\n1,2023-12-31\n2,2024-01-01\n3,2024-02-15\n4,\n5,2023-06-01\n")

	split, err := svc.SplitTimeSeries(context.Background(), path, "admit_date", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(split.Train))
	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(split.Test))
	assert.Equal(t, PrefixTrainSplit, prefixOf(t, split.Train))
	assert.Equal(t, PrefixTestSplit, prefixOf(t, split.Test))
	assert.True(t, strings.HasPrefix(filepath.Base(split.Train), "001_"))
	assert.True(t, strings.HasPrefix(filepath.Base(split.Test), "002_"))

	train, err := dataops.ReadTable(split.Train)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "2023-12-31"}, {"5", "2023-06-01"}}, train.Rows)

	test, err := dataops.ReadTable(split.Test)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"2", "2024-01-01"}, {"3", "2024-02-15"}}, test.Rows)
}

func TestSplitTimeSeries_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	path := writeCSV(t, "id,d\n1,2024-01-01\n")

	_, err := svc.SplitTimeSeries(ctx, path, "d", "soon")
	assert.ErrorContains(t, err, "invalid cutoff")

	_, err = svc.SplitTimeSeries(ctx, path, "missing", "2024-01-01")
	assert.ErrorIs(t, err, dataops.ErrColumnNotFound)
}

func TestBacktest(t *testing.T) {
	svc, runDir := newTestService(t)
	path := writeCSV(t, "member_id,readmission_30d,score\n1,0,0.1\n2,0,0.4\n3,1,0.35\n4,1,0.8\n5,,0.3\n")

	res, err := svc.Backtest(context.Background(), path, "", "")
	require.NoError(t, err)

	assert.InDelta(t, 0.75, res.Metrics.AUC, 1e-12)
	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(res.MetricsFile))
	assert.Equal(t, PrefixEvaluationMetrics, prefixOf(t, res.MetricsFile))
	assert.Equal(t, PrefixPlotsData, prefixOf(t, res.PlotsFile))

	raw, err := os.ReadFile(res.MetricsFile)
	require.NoError(t, err)
	var metrics map[string]float64
	require.NoError(t, json.Unmarshal(raw, &metrics))
	assert.InDelta(t, 0.75, metrics["auc"], 1e-12)
	assert.InDelta(t, 2.0/3.0, metrics["f1"], 1e-12)
	assert.Contains(t, metrics, "precision")
	assert.Contains(t, metrics, "recall")

	raw, err = os.ReadFile(res.PlotsFile)
	require.NoError(t, err)
	var plots struct {
		ROC         []ROCPoint         `json:"roc_curve"`
		Calibration []CalibrationPoint `json:"calibration_curve"`
	}
	require.NoError(t, json.Unmarshal(raw, &plots))
	assert.Len(t, plots.ROC, 5)
	assert.Len(t, plots.Calibration, 3)
}

func TestBacktest_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Backtest(ctx, writeCSV(t, "y,score\n0,0.1\n1,0.9\n"), "readmission_30d", "score")
	assert.ErrorIs(t, err, dataops.ErrColumnNotFound)

	_, err = svc.Backtest(ctx, writeCSV(t, "y,p\n0,0.1\n1,0.9\n"), "y", "score")
	assert.ErrorIs(t, err, dataops.ErrColumnNotFound)

	_, err = svc.Backtest(ctx, writeCSV(t, "y,p\nmaybe,0.1\n1,0.9\n"), "y", "p")
	assert.ErrorContains(t, err, "invalid label")

	_, err = svc.Backtest(ctx, writeCSV(t, "y,p\n0,high\n1,0.9\n"), "y", "p")
	assert.ErrorContains(t, err, "invalid score")
}

func TestSaveModel(t *testing.T) {
	svc, runDir := newTestService(t)
	blob := []byte{0x80, 0x04, 0x95, 0x42}

	path, err := svc.SaveModel(context.Background(), artifact.ModelEncoderFunc(func(w io.Writer) error {
		_, err := w.Write(blob)
		return err
	}), "XGBoost")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_xgboost_model.joblib"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(blob, got))

	_, err = svc.SaveModel(context.Background(), nil, " ")
	assert.Error(t, err)
}

func TestSaveModelFile(t *testing.T) {
	svc, _ := newTestService(t)
	src := filepath.Join(t.TempDir(), "booster.ubj")
	require.NoError(t, os.WriteFile(src, []byte("ubj-model"), 0o600))

	path, err := svc.SaveModelFile(context.Background(), src, "lightgbm")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_lightgbm_model.ubj"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ubj-model", string(got))

	_, err = svc.SaveModelFile(context.Background(), filepath.Join(t.TempDir(), "none.bin"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
