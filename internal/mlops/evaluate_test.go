package mlops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEvaluate(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	scores := []float64{0.1, 0.4, 0.35, 0.8}

	ev, err := Evaluate(labels, scores, DefaultThreshold)
	require.NoError(t, err)

	assert.InDelta(t, 0.75, ev.Metrics.AUC, 1e-12)
	assert.InDelta(t, 1.0, ev.Metrics.Precision, 1e-12)
	assert.InDelta(t, 0.5, ev.Metrics.Recall, 1e-12)
	assert.InDelta(t, 2.0/3.0, ev.Metrics.F1, 1e-12)
	assert.Equal(t, Confusion{TP: 1, FP: 0, TN: 2, FN: 1}, ev.Confusion)

	assertROC(t, []ROCPoint{
		{FPR: 0, TPR: 0, Threshold: 1.8},
		{FPR: 0, TPR: 0.5, Threshold: 0.8},
		{FPR: 0.5, TPR: 0.5, Threshold: 0.4},
		{FPR: 0.5, TPR: 1, Threshold: 0.35},
		{FPR: 1, TPR: 1, Threshold: 0.1},
	}, ev.ROC)

	require.Len(t, ev.Calibration, 3)
	assert.InDelta(t, 0.1, ev.Calibration[0].ProbPred, 1e-12)
	assert.InDelta(t, 0.0, ev.Calibration[0].ProbTrue, 1e-12)
	assert.InDelta(t, 0.375, ev.Calibration[1].ProbPred, 1e-12)
	assert.InDelta(t, 0.5, ev.Calibration[1].ProbTrue, 1e-12)
	assert.InDelta(t, 0.8, ev.Calibration[2].ProbPred, 1e-12)
	assert.InDelta(t, 1.0, ev.Calibration[2].ProbTrue, 1e-12)
}

func TestEvaluate_NoPositivePredictions(t *testing.T) {
	ev, err := Evaluate([]int{0, 1}, []float64{0.1, 0.2}, DefaultThreshold)
	require.NoError(t, err)

	assert.Zero(t, ev.Metrics.Precision)
	assert.Zero(t, ev.Metrics.Recall)
	assert.Zero(t, ev.Metrics.F1)
	assert.InDelta(t, 1.0, ev.Metrics.AUC, 1e-12)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		scores []float64
	}{
		{name: "length mismatch", labels: []int{0, 1}, scores: []float64{0.5}},
		{name: "empty", labels: nil, scores: nil},
		{name: "non-binary label", labels: []int{0, 2}, scores: []float64{0.1, 0.2}},
		{name: "single class", labels: []int{1, 1}, scores: []float64{0.1, 0.2}},
		{name: "not a probability", labels: []int{0, 1}, scores: []float64{0.1, 1.2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.labels, tt.scores, DefaultThreshold)
			assert.Error(t, err)
		})
	}

	_, err := Evaluate([]int{0, 0}, []float64{0.1, 0.2}, DefaultThreshold)
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestRocAUC_Ties(t *testing.T) {
	auc := rocAUC([]int{0, 1, 0, 1}, []float64{0.5, 0.5, 0.2, 0.9})
	assert.InDelta(t, 0.875, auc, 1e-12)
}

func TestRocCurve_DropsCollinearPoints(t *testing.T) {
	points := rocCurve([]int{1, 1, 1, 0, 0, 0}, []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1})

	assertROC(t, []ROCPoint{
		{FPR: 0, TPR: 0, Threshold: 1.9},
		{FPR: 0, TPR: 1.0 / 3.0, Threshold: 0.9},
		{FPR: 0, TPR: 1, Threshold: 0.7},
		{FPR: 1, TPR: 1, Threshold: 0.1},
	}, points)
}

func assertROC(t *testing.T, want, got []ROCPoint) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].FPR, got[i].FPR, 1e-12, "fpr[%d]", i)
		assert.InDelta(t, want[i].TPR, got[i].TPR, 1e-12, "tpr[%d]", i)
		assert.InDelta(t, want[i].Threshold, got[i].Threshold, 1e-12, "threshold[%d]", i)
	}
}

func TestEvaluate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 60).Draw(t, "n")
		labels := rapid.SliceOfN(rapid.IntRange(0, 1), n, n).Draw(t, "labels")
		scores := rapid.SliceOfN(rapid.Float64Range(0, 1), n, n).Draw(t, "scores")
		labels[0], labels[1] = 0, 1

		ev, err := Evaluate(labels, scores, DefaultThreshold)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}

		if ev.Metrics.AUC < 0 || ev.Metrics.AUC > 1 {
			t.Fatalf("auc %v out of range", ev.Metrics.AUC)
		}

		first, last := ev.ROC[0], ev.ROC[len(ev.ROC)-1]
		if first.FPR != 0 || first.TPR != 0 || last.FPR != 1 || last.TPR != 1 {
			t.Fatalf("roc curve must run from (0,0) to (1,1), got %v .. %v", first, last)
		}
		for i := 1; i < len(ev.ROC); i++ {
			if ev.ROC[i].FPR < ev.ROC[i-1].FPR || ev.ROC[i].TPR < ev.ROC[i-1].TPR {
				t.Fatalf("roc curve not monotone at %d", i)
			}
			if ev.ROC[i].Threshold >= ev.ROC[i-1].Threshold {
				t.Fatalf("thresholds not strictly decreasing at %d", i)
			}
		}

		total := ev.Confusion.TP + ev.Confusion.FP + ev.Confusion.TN + ev.Confusion.FN
		if total != n {
			t.Fatalf("confusion counts %d observations, want %d", total, n)
		}
	})
}
