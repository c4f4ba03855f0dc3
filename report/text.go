package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/OpenLEDEval/OLE-Toolset/analysis"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorBorder  = lipgloss.Color("#6B7280")
	colorDim     = lipgloss.Color("#9CA3AF")
	colorWarning = lipgloss.Color("#F59E0B")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle   = lipgloss.NewStyle().Foreground(colorDim)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// num formats a value for the terminal
func num(n Number, prec int) string {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return "n/a"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', prec, 64)
}

func renderText(w io.Writer, doc Document) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Colour precision analysis: "+doc.Name) + "\n")
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + value + "\n")
	}
	field("transfer", doc.Transfer)
	if doc.Metadata.Instrument != "" {
		field("instrument", doc.Metadata.Instrument)
	}
	if doc.Metadata.Software != "" {
		field("software", doc.Metadata.Software)
	}
	field("samples", fmt.Sprintf("%d (%d excluded)", doc.Samples, doc.Excluded))
	field("white xy", fmt.Sprintf("%s, %s", num(doc.White.Chromaticity.X, 4), num(doc.White.Chromaticity.Y, 4)))
	field("peak white", num(doc.White.Peak[1], 2)+" cd/m²")
	field("black level", num(doc.White.BlackLevel, 4)+" cd/m²")
	field("contrast", num(doc.White.ContrastRatio, 0)+":1")
	b.WriteString("\n")

	source := "configured"
	if doc.Estimated {
		source = "estimated"
	}
	b.WriteString(titleStyle.Render("Primary matrix ("+source+")") + "\n")
	mt := newTable("", "R", "G", "B")
	for r, name := range []string{"X", "Y", "Z"} {
		mt.Row(name, num(doc.Matrix[r][0], 6), num(doc.Matrix[r][1], 6), num(doc.Matrix[r][2], 6))
	}
	b.WriteString(mt.Render() + "\n")

	pt := newTable("primary", "x", "y", "samples", "outliers")
	if len(doc.Groups) > 0 {
		for _, g := range doc.Groups {
			pt.Row(g.Name, num(Number(g.Chromaticity.X), 4), num(Number(g.Chromaticity.Y), 4),
				strconv.Itoa(g.Samples), strconv.Itoa(g.Outliers))
		}
	} else {
		for _, name := range []string{"red", "green", "blue"} {
			p := doc.Primaries[name]
			pt.Row(name, num(p.X, 4), num(p.Y, 4), "-", "-")
		}
	}
	b.WriteString(pt.Render() + "\n\n")

	b.WriteString(titleStyle.Render("Errors") + "\n")
	et := newTable("metric", "count", "mean", "median", "p95", "max")
	for _, m := range doc.Metrics {
		et.Row(string(m.Metric), strconv.Itoa(m.Count), num(m.Mean, 4), num(m.Median, 4), num(m.P95, 4), num(m.Max, 4))
	}
	b.WriteString(et.Render() + "\n")

	headers := []string{"tag", "n"}
	for _, m := range analysis.Metrics {
		headers = append(headers, string(m))
	}
	tt := newTable(headers...)
	for _, tag := range sortedTags(doc.ByTag) {
		row := []string{string(tag), strconv.Itoa(doc.Tags[tag])}
		for _, m := range analysis.Metrics {
			row = append(row, num(doc.ByTag[tag][m], 3))
		}
		tt.Row(row...)
	}
	b.WriteString(tt.Render() + "\n")

	if len(doc.Warnings) > 0 {
		b.WriteString("\n" + warningStyle.Render(fmt.Sprintf("%d samples excluded", len(doc.Warnings))) + "\n")
		for _, wn := range doc.Warnings {
			b.WriteString(fmt.Sprintf("  #%d: %s\n", wn.Index, wn.Reason))
		}
	}

	if len(doc.Detail) > 0 {
		b.WriteString("\n" + titleStyle.Render("Samples") + "\n")
		st := newTable("#", "tag", "code", "X", "Y", "Z", "ICtCp", "dE2000")
		for _, s := range doc.Detail {
			code := fmt.Sprintf("%s %s %s", num(s.Code[0], 0), num(s.Code[1], 0), num(s.Code[2], 0))
			itp, de := "excluded", ""
			if !s.Excluded {
				itp, de = num(s.Errors[analysis.MetricICtCp], 3), num(s.Errors[analysis.MetricDE2000], 3)
			}
			st.Row(strconv.Itoa(s.Index), string(s.Tag), code,
				num(s.Measured[0], 3), num(s.Measured[1], 3), num(s.Measured[2], 3), itp, de)
		}
		b.WriteString(st.Render() + "\n")
	}

	_, err := lipgloss.Fprint(w, b.String())
	return err
}
