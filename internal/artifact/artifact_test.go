package artifact

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	tests := []struct {
		kind   Kind
		name   string
		ext    string
		subdir string
	}{
		{KindTable, "table", "csv", "dataops"},
		{KindModel, "model", "joblib", "mlops"},
		{KindMetrics, "metrics", "json", "mlops"},
		{KindChart, "chart", "html", "vizops"},
		{KindUnknown, "unknown", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.kind.String())
			assert.Equal(t, tt.ext, tt.kind.Extension())
			assert.Equal(t, tt.subdir, tt.kind.DefaultSubdir())

			parsed, ok := ParseKind(tt.name)
			assert.Equal(t, tt.kind != KindUnknown, ok)
			assert.Equal(t, tt.kind, parsed)
		})
	}
}

func TestModel_Extension(t *testing.T) {
	assert.Equal(t, "joblib", Model{}.Extension())
	assert.Equal(t, "onnx", Model{Format: "onnx"}.Extension())
}

func TestEncode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		artifact Artifact
		want     string
	}{
		{
			name:     "table quotes fields",
			artifact: Table{Columns: []string{"name", "note"}, Rows: [][]string{{"a", "x,y"}, {"b", `say "hi"`}}},
			want:     "name,note\na,\"x,y\"\nb,\"say \"\"hi\"\"\"\n",
		},
		{
			name:     "table header only",
			artifact: Table{Columns: []string{"a", "b"}},
			want:     "a,b\n",
		},
		{
			name:     "metrics sorted and indented",
			artifact: Metrics{"recall": 0.5, "auc": 0.75, "n": 10},
			want:     "{\n  \"auc\": 0.75,\n  \"n\": 10,\n  \"recall\": 0.5\n}",
		},
		{
			name: "model bytes verbatim",
			artifact: Model{Encoder: ModelEncoderFunc(func(w io.Writer) error {
				_, err := w.Write([]byte{0x00, 0x01, 0xff})
				return err
			})},
			want: "\x00\x01\xff",
		},
		{
			name: "chart rendered",
			artifact: ChartFunc(func(_ context.Context, w io.Writer) error {
				_, err := io.WriteString(w, "<html></html>")
				return err
			}),
			want: "<html></html>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, encode(ctx, &buf, tt.artifact))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSerializationError(t *testing.T) {
	err := &SerializationError{Kind: KindTable, Prefix: "p", Err: ErrUnsupportedKind}
	assert.Equal(t, `serialize table artifact "p": unsupported artifact kind`, err.Error())
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}
