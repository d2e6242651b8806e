package mlops

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
)

// ErrSingleClass is returned when the labels contain only one class, which
// leaves AUC and the ROC curve undefined.
var ErrSingleClass = errors.New("labels contain a single class")

// CalibrationBins is the number of uniform bins in the calibration curve.
const CalibrationBins = 10

// Metrics are the scalar evaluation metrics of a binary classifier.
type Metrics struct {
	AUC       float64 `json:"auc"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Artifact returns the metrics as a persistable mapping.
func (m Metrics) Artifact() artifact.Metrics {
	return artifact.Metrics{
		"auc":       m.AUC,
		"f1":        m.F1,
		"precision": m.Precision,
		"recall":    m.Recall,
	}
}

// ROCPoint is one point of the ROC curve.
type ROCPoint struct {
	FPR       float64 `json:"fpr"`
	TPR       float64 `json:"tpr"`
	Threshold float64 `json:"threshold"`
}

// CalibrationPoint is one non-empty bin of the calibration curve.
type CalibrationPoint struct {
	ProbPred float64 `json:"prob_pred"`
	ProbTrue float64 `json:"prob_true"`
}

// Confusion counts predictions against labels.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// Evaluation is the full result of Evaluate.
type Evaluation struct {
	Metrics     Metrics            `json:"metrics"`
	ROC         []ROCPoint         `json:"roc_curve"`
	Calibration []CalibrationPoint `json:"calibration_curve"`
	Confusion   Confusion          `json:"confusion"`
}

// Evaluate scores binary labels (0 or 1) against predicted probabilities.
// A score above threshold predicts the positive class. Precision, recall and
// F1 are 0 when their denominator is 0.
func Evaluate(labels []int, scores []float64, threshold float64) (*Evaluation, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("got %d labels and %d scores", len(labels), len(scores))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no observations to evaluate")
	}
	var pos int
	for i, y := range labels {
		if y != 0 && y != 1 {
			return nil, fmt.Errorf("label %d at row %d is not binary", y, i+1)
		}
		if math.IsNaN(scores[i]) {
			return nil, fmt.Errorf("score at row %d is NaN", i+1)
		}
		pos += y
	}
	if pos == 0 || pos == len(labels) {
		return nil, ErrSingleClass
	}

	cm := confusion(labels, scores, threshold)
	cal, err := calibrationCurve(labels, scores, CalibrationBins)
	if err != nil {
		return nil, err
	}

	return &Evaluation{
		Metrics: Metrics{
			AUC:       rocAUC(labels, scores),
			F1:        safeDiv(2*float64(cm.TP), float64(2*cm.TP+cm.FP+cm.FN)),
			Precision: safeDiv(float64(cm.TP), float64(cm.TP+cm.FP)),
			Recall:    safeDiv(float64(cm.TP), float64(cm.TP+cm.FN)),
		},
		ROC:         rocCurve(labels, scores),
		Calibration: cal,
		Confusion:   cm,
	}, nil
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func confusion(labels []int, scores []float64, threshold float64) Confusion {
	var c Confusion
	for i, y := range labels {
		predicted := scores[i] > threshold
		switch {
		case predicted && y == 1:
			c.TP++
		case predicted:
			c.FP++
		case y == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// rocAUC is the Mann-Whitney statistic with average ranks for ties.
func rocAUC(labels []int, scores []float64) float64 {
	order := sortedIndexes(scores, false)
	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && scores[order[j+1]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[order[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg, sumPos float64
	for i, y := range labels {
		if y == 1 {
			nPos++
			sumPos += ranks[i]
		} else {
			nNeg++
		}
	}
	return (sumPos - nPos*(nPos+1)/2) / (nPos * nNeg)
}

// rocCurve walks distinct score thresholds from high to low and drops
// points that are collinear with their neighbours. The first point sits at
// (0, 0) with a threshold one above the highest score.
func rocCurve(labels []int, scores []float64) []ROCPoint {
	order := sortedIndexes(scores, true)

	var fps, tps, thresholds []float64
	var fp, tp float64
	for i, idx := range order {
		if labels[idx] == 1 {
			tp++
		} else {
			fp++
		}
		if i+1 < len(order) && scores[order[i+1]] == scores[idx] {
			continue
		}
		fps = append(fps, fp)
		tps = append(tps, tp)
		thresholds = append(thresholds, scores[idx])
	}

	if len(fps) > 2 {
		keep := []int{0}
		for i := 1; i < len(fps)-1; i++ {
			d2fp := fps[i+1] - 2*fps[i] + fps[i-1]
			d2tp := tps[i+1] - 2*tps[i] + tps[i-1]
			if d2fp != 0 || d2tp != 0 {
				keep = append(keep, i)
			}
		}
		keep = append(keep, len(fps)-1)
		fps, tps, thresholds = pick(fps, keep), pick(tps, keep), pick(thresholds, keep)
	}

	totalFP, totalTP := fps[len(fps)-1], tps[len(tps)-1]
	points := make([]ROCPoint, 0, len(fps)+1)
	points = append(points, ROCPoint{FPR: 0, TPR: 0, Threshold: thresholds[0] + 1})
	for i := range fps {
		points = append(points, ROCPoint{
			FPR:       fps[i] / totalFP,
			TPR:       tps[i] / totalTP,
			Threshold: thresholds[i],
		})
	}
	return points
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// calibrationCurve bins probabilities uniformly on [0, 1] and returns the
// mean predicted probability and observed positive rate per non-empty bin.
func calibrationCurve(labels []int, scores []float64, bins int) ([]CalibrationPoint, error) {
	sums := make([]float64, bins)
	trues := make([]float64, bins)
	totals := make([]float64, bins)

	for i, p := range scores {
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("score %g at row %d is not a probability", p, i+1)
		}
		// Bin b covers (b/bins, (b+1)/bins]; the first bin also takes 0.
		b := 0
		for b < bins-1 && float64(b+1)/float64(bins) < p {
			b++
		}
		sums[b] += p
		trues[b] += float64(labels[i])
		totals[b]++
	}

	var points []CalibrationPoint
	for b := range totals {
		if totals[b] == 0 {
			continue
		}
		points = append(points, CalibrationPoint{
			ProbPred: sums[b] / totals[b],
			ProbTrue: trues[b] / totals[b],
		})
	}
	return points, nil
}

func sortedIndexes(scores []float64, descending bool) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if descending {
			return scores[order[a]] > scores[order[b]]
		}
		return scores[order[a]] < scores[order[b]]
	})
	return order
}
