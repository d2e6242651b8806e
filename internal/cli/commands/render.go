package commands

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/leaptrack/internal/artifact"
	"github.com/leapstack-labs/leaptrack/internal/cli/output"
	"github.com/leapstack-labs/leaptrack/internal/dataops"
)

// savedOutput is the JSON shape of a single saved artifact.
type savedOutput struct {
	Kind   string `json:"kind"`
	Prefix string `json:"prefix"`
	Step   int    `json:"step"`
	Hash   string `json:"hash"`
	Path   string `json:"path"`
}

func describeSaved(path string) savedOutput {
	out := savedOutput{Path: path}
	if rec, err := artifact.ParseFileName(filepath.Base(path)); err == nil {
		out.Prefix = rec.Prefix
		out.Step = rec.Step
		out.Hash = rec.Hash
		for _, k := range []artifact.Kind{artifact.KindTable, artifact.KindModel, artifact.KindMetrics, artifact.KindChart} {
			if k.Extension() == rec.Extension {
				out.Kind = k.String()
			}
		}
	}
	return out
}

// renderSaved reports one or more saved artifacts.
func renderSaved(r *output.Renderer, paths ...string) error {
	saved := make([]savedOutput, len(paths))
	for i, p := range paths {
		saved[i] = describeSaved(p)
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if len(saved) == 1 {
			return r.JSON(saved[0])
		}
		return r.JSON(saved)
	case output.ModeMarkdown:
		for _, s := range saved {
			r.Println(output.FormatKeyValue("Saved", "`"+s.Path+"`"))
		}
	default:
		for _, s := range saved {
			r.Success(fmt.Sprintf("saved %s", r.Path(s.Path)))
		}
	}
	return nil
}

// renderPreview prints the first n rows of a saved CSV.
func renderPreview(r *output.Renderer, path string, n int) error {
	if n <= 0 || r.EffectiveMode() == output.ModeJSON {
		return nil
	}
	t, err := dataops.ReadTable(path)
	if err != nil {
		return err
	}
	rows := t.Rows
	if len(rows) > n {
		rows = rows[:n]
	}
	r.Println("")
	return r.Table(t.Columns, rows)
}

// renderResults renders a SQL result set through the renderer.
func renderResults(r *output.Renderer, rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	var results [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return err
		}
		row := make([]string, len(cols))
		for i, val := range values {
			row[i] = formatValue(val)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return r.Table(cols, results)
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
