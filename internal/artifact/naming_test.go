package artifact

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var fileNameGrammar = regexp.MustCompile(`^\d{3}_\d{8}_\d{6}\d{2}_[0-9a-f]{8}_.+\.\w+$`)

func TestRecord_FileName(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{
			name: "first step",
			rec:  Record{Step: 1, Timestamp: "20240101_120000", Hash: "deadbeef", Prefix: "train_split", Extension: "csv"},
			want: "001_20240101_12000001_deadbeef_train_split.csv",
		},
		{
			name: "sub step wraps at 100",
			rec:  Record{Step: 100, Timestamp: "20240101_120000", Hash: "0123abcd", Prefix: "m", Extension: "json"},
			want: "100_20240101_12000000_0123abcd_m.json",
		},
		{
			name: "step 101",
			rec:  Record{Step: 101, Timestamp: "20240101_120000", Hash: "0123abcd", Prefix: "evaluation_metrics", Extension: "json"},
			want: "101_20240101_12000001_0123abcd_evaluation_metrics.json",
		},
		{
			name: "step beyond three digits",
			rec:  Record{Step: 1234, Timestamp: "20240101_120000", Hash: "0123abcd", Prefix: "roc", Extension: "html"},
			want: "1234_20240101_12000034_0123abcd_roc.html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.FileName())
		})
	}
}

func TestTempFileName(t *testing.T) {
	assert.Equal(t, "train_split_temp.csv", TempFileName("train_split", "csv"))
}

func TestFileName_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rec := Record{
			Step:      rapid.IntRange(1, 999).Draw(t, "step"),
			Timestamp: rapid.StringMatching(`20[0-9]{2}(0[1-9]|1[0-2])(0[1-9]|[12][0-9])_([01][0-9]|2[0-3])[0-5][0-9][0-5][0-9]`).Draw(t, "timestamp"),
			Hash:      rapid.StringMatching(`[0-9a-f]{8}`).Draw(t, "hash"),
			Prefix:    rapid.StringMatching(`[a-z][a-z0-9_]{0,24}`).Draw(t, "prefix"),
			Extension: rapid.SampledFrom([]string{"csv", "joblib", "json", "html"}).Draw(t, "ext"),
		}

		name := rec.FileName()
		if !fileNameGrammar.MatchString(name) {
			t.Fatalf("%q does not match the filename grammar", name)
		}
		if rec.SubStep() != rec.Step%100 || rec.SubStep() > 99 {
			t.Fatalf("sub-step %d for step %d", rec.SubStep(), rec.Step)
		}

		parsed, err := ParseFileName(name)
		if err != nil {
			t.Fatalf("parse %q: %v", name, err)
		}
		if parsed != rec {
			t.Fatalf("parsed %+v, want %+v", parsed, rec)
		}
	})
}

func TestFileName_DistinctStepsNeverCollide(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(1, 5000).Draw(t, "a")
		b := rapid.IntRange(1, 5000).Filter(func(v int) bool { return v != a }).Draw(t, "b")

		base := Record{Timestamp: "20240101_120000", Hash: "cafebabe", Prefix: "same", Extension: "csv"}
		ra, rb := base, base
		ra.Step, rb.Step = a, b

		if ra.FileName() == rb.FileName() {
			t.Fatalf("steps %d and %d produced the same name", a, b)
		}
	})
}

func TestParseFileName_Rejects(t *testing.T) {
	for _, name := range []string{
		"train_split_temp.csv",
		"001_20240101_12000001_DEADBEEF_x.csv",
		"001_20240101_12000002_deadbeef_x.csv",
		"analysis_log.md",
	} {
		_, err := ParseFileName(name)
		assert.Error(t, err, name)
	}
}

func TestValidatePrefix(t *testing.T) {
	require.NoError(t, validatePrefix("train_split"))
	require.NoError(t, validatePrefix("xgboost_model"))

	for _, bad := range []string{"", "a/b", `a\b`, ".", ".."} {
		assert.ErrorIs(t, validatePrefix(bad), ErrInvalidPrefix, bad)
	}
}
