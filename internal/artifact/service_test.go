package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leaptrack/internal/runctx"
	"github.com/leapstack-labs/leaptrack/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimestamp = "20240101_120000"

func newTestService(t *testing.T, opts ...Option) (*Service, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "output")
	clock := func() time.Time {
		ts, err := time.ParseInLocation(runctx.TimestampLayout, testTimestamp, time.Local)
		require.NoError(t, err)
		return ts
	}
	runs := runctx.NewManager(root, runctx.WithClock(clock), runctx.WithSnapshotFiles(nil))
	opts = append([]Option{WithLogger(testutil.NewTestLogger(t))}, opts...)
	return NewService(runs, opts...), filepath.Join(root, testTimestamp)
}

func trainSplit() Table {
	return Table{
		Columns: []string{"member_id", "amount", "readmission_30d"},
		Rows: [][]string{
			{"1", "120.5", "0"},
			{"2", "80", "1"},
			{"3", "42.25", "0"},
		},
	}
}

func TestService_SaveTable_FreshRun(t *testing.T) {
	svc, runDir := newTestService(t)

	path, err := svc.SaveTable(context.Background(), trainSplit(), "train_split", "dataops")
	require.NoError(t, err)

	expected := "member_id,amount,readmission_30d\n1,120.5,0\n2,80,1\n3,42.25,0\n"
	wantName := fmt.Sprintf("001_20240101_12000001_%s_train_split.csv", sha8([]byte(expected)))

	assert.Equal(t, filepath.Join(runDir, "dataops", wantName), path)
	assert.True(t, filepath.IsAbs(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expected, string(content))
}

func TestService_NoTempFileRemains(t *testing.T) {
	svc, runDir := newTestService(t)
	ctx := context.Background()

	_, err := svc.SaveTable(ctx, trainSplit(), "train_split", "")
	require.NoError(t, err)
	_, err = svc.SaveMetrics(ctx, Metrics{"auc": 0.91}, "evaluation_metrics", "")
	require.NoError(t, err)

	for _, sub := range []string{"dataops", "mlops"} {
		entries, err := os.ReadDir(filepath.Join(runDir, sub))
		require.NoError(t, err)
		require.Len(t, entries, 1, sub)
		assert.NotContains(t, entries[0].Name(), "_temp.")

		info, err := entries[0].Info()
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestService_SameBytesDifferentSteps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.SaveTable(ctx, trainSplit(), "train_split", "dataops")
	require.NoError(t, err)
	second, err := svc.SaveTable(ctx, trainSplit(), "train_split", "dataops")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	r1, err := ParseFileName(filepath.Base(first))
	require.NoError(t, err)
	r2, err := ParseFileName(filepath.Base(second))
	require.NoError(t, err)

	assert.Equal(t, r1.Hash, r2.Hash)
	assert.Equal(t, 1, r1.Step)
	assert.Equal(t, 2, r2.Step)
}

func TestService_StepSharedAcrossKinds(t *testing.T) {
	svc, runDir := newTestService(t)
	ctx := context.Background()

	tablePath, err := svc.SaveTable(ctx, trainSplit(), "train_split", "")
	require.NoError(t, err)

	model := Model{Encoder: ModelEncoderFunc(func(w io.Writer) error {
		_, err := w.Write([]byte{0x80, 0x04, 0x95, 0x00})
		return err
	})}
	modelPath, err := svc.SaveModel(ctx, model, "xgboost_model", "")
	require.NoError(t, err)

	chart := ChartFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!DOCTYPE html><html><body>roc</body></html>")
		return err
	})
	chartPath, err := svc.SaveChart(ctx, chart, "roc_curve", "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(runDir, "dataops"), filepath.Dir(tablePath))
	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(modelPath))
	assert.Equal(t, filepath.Join(runDir, "vizops"), filepath.Dir(chartPath))
	assert.True(t, strings.HasSuffix(modelPath, "_xgboost_model.joblib"))
	assert.True(t, strings.HasSuffix(chartPath, "_roc_curve.html"))

	for i, p := range []string{tablePath, modelPath, chartPath} {
		rec, err := ParseFileName(filepath.Base(p))
		require.NoError(t, err)
		assert.Equal(t, i+1, rec.Step, p)
	}
}

func TestService_SaveMetrics_Step101(t *testing.T) {
	svc, runDir := newTestService(t)
	ctx := context.Background()

	for i := range 100 {
		_, err := svc.SaveTable(ctx, Table{Columns: []string{"i"}, Rows: [][]string{{fmt.Sprint(i)}}}, "filler", "")
		require.NoError(t, err)
	}

	path, err := svc.SaveMetrics(ctx, Metrics{"auc": 0.91}, "evaluation_metrics", "mlops")
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "101_20240101_12000001_"), name)

	rec, err := ParseFileName(name)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.SubStep())
	assert.Equal(t, filepath.Join(runDir, "mlops"), filepath.Dir(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"auc\": 0.91\n}", string(raw))

	var decoded map[string]float64
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.InDelta(t, 0.91, decoded["auc"], 1e-9)
}

func TestService_SubStepWraps(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var names []string
	for i := range 101 {
		p, err := svc.SaveMetrics(ctx, Metrics{"i": i}, "m", "")
		require.NoError(t, err)
		names = append(names, filepath.Base(p))
	}

	rec99, err := ParseFileName(names[98])
	require.NoError(t, err)
	rec100, err := ParseFileName(names[99])
	require.NoError(t, err)

	assert.Equal(t, 99, rec99.SubStep())
	assert.Equal(t, 0, rec100.SubStep())
	assert.True(t, strings.HasPrefix(names[99], "100_20240101_12000000_"), names[99])
}

// unregistered is an artifact variant with no serializer.
type unregistered struct{ kind Kind }

func (u unregistered) Kind() Kind        { return u.kind }
func (unregistered) Extension() string { return "bin" }
func (unregistered) sealed()           {}

func TestService_UnsupportedKind(t *testing.T) {
	tests := []struct {
		name     string
		artifact Artifact
	}{
		{name: "unknown kind", artifact: unregistered{kind: KindUnknown}},
		{name: "known kind without serializer", artifact: unregistered{kind: KindChart}},
		{name: "nil artifact", artifact: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, runDir := newTestService(t)

			_, err := svc.Save(context.Background(), tt.artifact, "mystery", "vizops")
			require.Error(t, err)

			var serr *SerializationError
			require.ErrorAs(t, err, &serr)
			assert.ErrorIs(t, err, ErrUnsupportedKind)

			matches, _ := filepath.Glob(filepath.Join(runDir, "*", "*_mystery.*"))
			assert.Empty(t, matches, "no renamed file may be produced")
		})
	}
}

func TestService_SerializationFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		artifact Artifact
	}{
		{name: "ragged table", artifact: Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1"}}}},
		{name: "table without columns", artifact: Table{}},
		{name: "model without encoder", artifact: Model{}},
		{name: "model encoder fails", artifact: Model{Encoder: ModelEncoderFunc(func(io.Writer) error { return errors.New("pickle failed") })}},
		{name: "metrics not json", artifact: Metrics{"fn": func() {}}},
		{name: "chart without component", artifact: Chart{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, runDir := newTestService(t)

			_, err := svc.Save(ctx, tt.artifact, "broken", "")
			var serr *SerializationError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.artifact.Kind(), serr.Kind)

			// The counter is untouched and the run stays usable.
			rc, err := svc.Runs().Get()
			require.NoError(t, err)
			assert.Equal(t, 0, rc.Step())

			renamed, _ := filepath.Glob(filepath.Join(runDir, "*", "*_broken.*"))
			assert.Empty(t, renamed)

			path, err := svc.SaveTable(ctx, trainSplit(), "after_failure", "")
			require.NoError(t, err)
			assert.Contains(t, filepath.Base(path), "001_")
		})
	}
}

func TestService_InvalidInputs(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SaveTable(context.Background(), trainSplit(), "", "")
	assert.ErrorIs(t, err, ErrInvalidPrefix)

	_, err = svc.SaveTable(context.Background(), trainSplit(), "ok", "../outside")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SaveTable(ctx, trainSplit(), "ok", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_CreatesMissingSubdir(t *testing.T) {
	svc, runDir := newTestService(t)

	path, err := svc.SaveChart(context.Background(), ChartFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<html></html>")
		return err
	}), "claims_by_month", "vizops/eda")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runDir, "vizops", "eda"), filepath.Dir(path))
}

func TestService_LogsConfirmation(t *testing.T) {
	logger, buf := testutil.NewCapturingLogger()
	svc, _ := newTestService(t, WithLogger(logger))

	path, err := svc.SaveTable(context.Background(), trainSplit(), "train_split", "")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "saved table")
	assert.Contains(t, buf.String(), path)
}

type recorderFunc func(ctx context.Context, rc *runctx.RunContext, saved Saved) error

func (f recorderFunc) RecordArtifact(ctx context.Context, rc *runctx.RunContext, saved Saved) error {
	return f(ctx, rc, saved)
}

func TestService_Recorder(t *testing.T) {
	var got []Saved
	rec := recorderFunc(func(_ context.Context, _ *runctx.RunContext, saved Saved) error {
		got = append(got, saved)
		return errors.New("index unavailable")
	})
	svc, _ := newTestService(t, WithRecorder(rec))

	path, err := svc.SaveMetrics(context.Background(), Metrics{"f1": 0.5}, "evaluation_metrics", "")
	require.NoError(t, err, "recorder failures are advisory")

	require.Len(t, got, 1)
	assert.Equal(t, path, got[0].Path)
	assert.Equal(t, KindMetrics, got[0].Kind)
	assert.Equal(t, "mlops", got[0].Subdir)
	assert.Equal(t, 1, got[0].Step)
	assert.Equal(t, int64(len("{\n  \"f1\": 0.5\n}")), got[0].Size)
}
