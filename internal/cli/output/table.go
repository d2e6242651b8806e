package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders rows under a header. Text mode draws a box table, markdown
// mode a pipe table, and JSON mode an array of objects keyed by column.
func (r *Renderer) Table(columns []string, rows [][]string) error {
	if r.EffectiveMode() == ModeJSON {
		records := make([]map[string]string, len(rows))
		for i, row := range rows {
			rec := make(map[string]string, len(columns))
			for j, col := range columns {
				if j < len(row) {
					rec[col] = row[j]
				}
			}
			records[i] = rec
		}
		return r.JSON(records)
	}

	if len(rows) == 0 {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	header := make(table.Row, len(columns))
	for i, col := range columns {
		header[i] = col
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.Style().Format.Header = text.FormatDefault
		t.RenderMarkdown()
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Format.Header = text.FormatDefault
		t.Render()
	}
	r.Println(fmt.Sprintf("(%d rows)", len(rows)))
	return nil
}
