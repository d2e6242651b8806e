package vizops

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/a-h/templ"
)

// Canvas geometry shared by all charts, in SVG user units.
const (
	chartWidth   = 640
	chartHeight  = 480
	marginLeft   = 70
	marginRight  = 30
	marginTop    = 50
	marginBottom = 60
	tickCount    = 5
)

var palette = []string{"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd", "#8c564b"}

// Chart is any of the chart types in this package.
type Chart interface {
	Component() templ.Component
}

// Point is one (x, y) sample of a line series.
type Point struct {
	X float64
	Y float64
}

// Series is a named polyline.
type Series struct {
	Name    string
	Points  []Point
	Markers bool
}

// LineChart draws one or more series on linear axes.
type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series

	// Diagonal draws a dashed y = x reference line.
	Diagonal bool

	// Domain fixes the axis ranges. A zero Domain is computed from the data.
	Domain Domain
}

// Domain is the visible range on both axes.
type Domain struct {
	XMin, XMax float64
	YMin, YMax float64
}

func (d Domain) empty() bool {
	return d == Domain{}
}

// UnitDomain is the [0, 1] x [0, 1] square used by probability plots.
var UnitDomain = Domain{XMin: 0, XMax: 1, YMin: 0, YMax: 1}

// Component renders the chart as a standalone HTML document.
func (c LineChart) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		d := c.Domain
		if d.empty() {
			d = c.dataDomain()
		}
		p := newPrinter(w)
		p.open(c.Title, chartHeight)
		p.axes(d, c.XLabel, c.YLabel)
		if c.Diagonal {
			x0, y0 := project(d, math.Max(d.XMin, d.YMin), math.Max(d.XMin, d.YMin))
			x1, y1 := project(d, math.Min(d.XMax, d.YMax), math.Min(d.XMax, d.YMax))
			p.printf(`<line class="reference" x1="%s" y1="%s" x2="%s" y2="%s" stroke="#888888" stroke-dasharray="5,5"/>`+"\n",
				num(x0), num(y0), num(x1), num(y1))
		}
		for i, s := range c.Series {
			color := palette[i%len(palette)]
			p.printf(`<g class="series"><title>%s</title>`+"\n", templ.EscapeString(s.Name))
			p.printf(`<polyline fill="none" stroke="%s" stroke-width="2" points="`, color)
			for j, pt := range s.Points {
				x, y := project(d, pt.X, pt.Y)
				if j > 0 {
					p.printf(" ")
				}
				p.printf("%s,%s", num(x), num(y))
			}
			p.printf("\"/>\n")
			if s.Markers {
				for _, pt := range s.Points {
					x, y := project(d, pt.X, pt.Y)
					p.printf(`<circle cx="%s" cy="%s" r="4" fill="%s"/>`+"\n", num(x), num(y), color)
				}
			}
			p.printf("</g>\n")
		}
		p.legend(c.Series)
		p.close()
		return p.err
	})
}

func (c LineChart) dataDomain() Domain {
	d := Domain{XMin: math.Inf(1), XMax: math.Inf(-1), YMin: math.Inf(1), YMax: math.Inf(-1)}
	for _, s := range c.Series {
		for _, pt := range s.Points {
			d.XMin = math.Min(d.XMin, pt.X)
			d.XMax = math.Max(d.XMax, pt.X)
			d.YMin = math.Min(d.YMin, pt.Y)
			d.YMax = math.Max(d.YMax, pt.Y)
		}
	}
	if math.IsInf(d.XMin, 1) {
		return UnitDomain
	}
	if d.XMin == d.XMax {
		d.XMin, d.XMax = d.XMin-0.5, d.XMax+0.5
	}
	if d.YMin == d.YMax {
		d.YMin, d.YMax = d.YMin-0.5, d.YMax+0.5
	}
	return d
}

// Bar is one labelled value.
type Bar struct {
	Label string
	Value float64
}

// BarChart draws horizontal bars in the given order, top to bottom.
type BarChart struct {
	Title  string
	XLabel string
	Bars   []Bar
}

const barHeight = 22

// Component renders the chart as a standalone HTML document.
func (c BarChart) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		height := marginTop + marginBottom + barHeight*max(len(c.Bars), 1)
		maxV := 0.0
		for _, b := range c.Bars {
			maxV = math.Max(maxV, b.Value)
		}
		if maxV == 0 {
			maxV = 1
		}
		left := marginLeft + 90
		plotW := float64(chartWidth - left - marginRight)

		p := newPrinter(w)
		p.open(c.Title, height)
		for i, b := range c.Bars {
			y := marginTop + i*barHeight
			wid := plotW * math.Max(b.Value, 0) / maxV
			p.printf(`<g class="bar"><title>%s: %s</title>`+"\n",
				templ.EscapeString(b.Label), num(b.Value))
			p.printf(`<text x="%d" y="%d" text-anchor="end" font-size="12">%s</text>`+"\n",
				left-6, y+barHeight/2+4, templ.EscapeString(b.Label))
			p.printf(`<rect x="%d" y="%d" width="%s" height="%d" fill="%s"/>`+"\n",
				left, y+2, num(wid), barHeight-4, palette[0])
			p.printf("</g>\n")
		}
		axisY := marginTop + barHeight*len(c.Bars)
		p.printf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#333333"/>`+"\n",
			left, axisY, chartWidth-marginRight, axisY)
		for i := 0; i <= tickCount; i++ {
			v := maxV * float64(i) / tickCount
			x := float64(left) + plotW*float64(i)/tickCount
			p.printf(`<text x="%s" y="%d" text-anchor="middle" font-size="11">%s</text>`+"\n",
				num(x), axisY+16, tick(v))
		}
		p.printf(`<text x="%s" y="%d" text-anchor="middle" font-size="13">%s</text>`+"\n",
			num(float64(left)+plotW/2), axisY+40, templ.EscapeString(c.XLabel))
		p.close()
		return p.err
	})
}

// Heatmap draws a labelled grid of counts. Values[i][j] is row i, column j.
type Heatmap struct {
	Title   string
	XLabel  string
	YLabel  string
	Columns []string
	Rows    []string
	Values  [][]float64
}

// Component renders the chart as a standalone HTML document.
func (c Heatmap) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(c.Values) != len(c.Rows) {
			return fmt.Errorf("heatmap has %d rows of values for %d row labels", len(c.Values), len(c.Rows))
		}
		maxV := 0.0
		for i, row := range c.Values {
			if len(row) != len(c.Columns) {
				return fmt.Errorf("heatmap row %d has %d values for %d columns", i, len(row), len(c.Columns))
			}
			for _, v := range row {
				maxV = math.Max(maxV, v)
			}
		}
		plotW := float64(chartWidth - marginLeft - marginRight)
		plotH := float64(chartHeight - marginTop - marginBottom)
		cellW := plotW / float64(max(len(c.Columns), 1))
		cellH := plotH / float64(max(len(c.Rows), 1))

		p := newPrinter(w)
		p.open(c.Title, chartHeight)
		for i, row := range c.Values {
			for j, v := range row {
				x := marginLeft + cellW*float64(j)
				y := marginTop + cellH*float64(i)
				shade := 0.0
				if maxV > 0 {
					shade = v / maxV
				}
				text := "#000000"
				if shade > 0.5 {
					text = "#ffffff"
				}
				p.printf(`<g class="cell"><title>%s / %s: %s</title>`+"\n",
					templ.EscapeString(c.Rows[i]), templ.EscapeString(c.Columns[j]), tick(v))
				p.printf(`<rect x="%s" y="%s" width="%s" height="%s" fill="%s" fill-opacity="%s" stroke="#ffffff"/>`+"\n",
					num(x), num(y), num(cellW), num(cellH), palette[0], num(0.1+0.9*shade))
				p.printf(`<text x="%s" y="%s" text-anchor="middle" font-size="16" fill="%s">%s</text>`+"\n",
					num(x+cellW/2), num(y+cellH/2+5), text, tick(v))
				p.printf("</g>\n")
			}
		}
		for j, label := range c.Columns {
			p.printf(`<text x="%s" y="%d" text-anchor="middle" font-size="12">%s</text>`+"\n",
				num(marginLeft+cellW*float64(j)+cellW/2), chartHeight-marginBottom+18, templ.EscapeString(label))
		}
		for i, label := range c.Rows {
			p.printf(`<text x="%d" y="%s" text-anchor="end" font-size="12">%s</text>`+"\n",
				marginLeft-6, num(marginTop+cellH*float64(i)+cellH/2+4), templ.EscapeString(label))
		}
		p.labels(c.XLabel, c.YLabel)
		p.close()
		return p.err
	})
}

// project maps data coordinates to SVG coordinates inside the plot area.
func project(d Domain, x, y float64) (float64, float64) {
	plotW := float64(chartWidth - marginLeft - marginRight)
	plotH := float64(chartHeight - marginTop - marginBottom)
	px := marginLeft + (x-d.XMin)/(d.XMax-d.XMin)*plotW
	py := marginTop + plotH - (y-d.YMin)/(d.YMax-d.YMin)*plotH
	return px, py
}

// num formats an SVG coordinate with fixed precision so output is stable.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// tick formats an axis or cell value without trailing zeros.
func tick(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// printer writes SVG markup and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) open(title string, height int) {
	t := templ.EscapeString(title)
	p.printf("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", t)
	p.printf("<style>body{font-family:sans-serif;margin:24px}svg text{fill:#333333}</style>\n</head>\n<body>\n")
	p.printf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" role="img">`+"\n",
		chartWidth, height, chartWidth, height)
	p.printf(`<text x="%d" y="28" text-anchor="middle" font-size="16" font-weight="bold">%s</text>`+"\n",
		chartWidth/2, t)
}

func (p *printer) close() {
	p.printf("</svg>\n</body>\n</html>\n")
}

func (p *printer) axes(d Domain, xLabel, yLabel string) {
	x0, y0 := project(d, d.XMin, d.YMin)
	x1, y1 := project(d, d.XMax, d.YMax)
	p.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="#333333"/>`+"\n", num(x0), num(y0), num(x1), num(y0))
	p.printf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="#333333"/>`+"\n", num(x0), num(y0), num(x0), num(y1))
	for i := 0; i <= tickCount; i++ {
		xv := d.XMin + (d.XMax-d.XMin)*float64(i)/tickCount
		yv := d.YMin + (d.YMax-d.YMin)*float64(i)/tickCount
		tx, _ := project(d, xv, d.YMin)
		_, ty := project(d, d.XMin, yv)
		p.printf(`<text x="%s" y="%s" text-anchor="middle" font-size="11">%s</text>`+"\n",
			num(tx), num(y0+16), tick(round(xv)))
		p.printf(`<text x="%s" y="%s" text-anchor="end" font-size="11">%s</text>`+"\n",
			num(x0-6), num(ty+4), tick(round(yv)))
	}
	p.labels(xLabel, yLabel)
}

func (p *printer) labels(xLabel, yLabel string) {
	cx := marginLeft + (chartWidth-marginLeft-marginRight)/2
	cy := marginTop + (chartHeight-marginTop-marginBottom)/2
	p.printf(`<text x="%d" y="%d" text-anchor="middle" font-size="13">%s</text>`+"\n",
		cx, chartHeight-15, templ.EscapeString(xLabel))
	p.printf(`<text x="18" y="%d" text-anchor="middle" font-size="13" transform="rotate(-90 18 %d)">%s</text>`+"\n",
		cy, cy, templ.EscapeString(yLabel))
}

func (p *printer) legend(series []Series) {
	if len(series) < 2 {
		return
	}
	for i, s := range series {
		y := marginTop + 10 + i*18
		x := chartWidth - marginRight - 150
		p.printf(`<rect x="%d" y="%d" width="12" height="12" fill="%s"/>`+"\n", x, y-10, palette[i%len(palette)])
		p.printf(`<text x="%d" y="%d" font-size="12">%s</text>`+"\n", x+18, y, templ.EscapeString(s.Name))
	}
}

// round trims float noise from tick values.
func round(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}
