package report

import (
	"bytes"
	"io"

	"github.com/olekukonko/tablewriter"
)

type renderConfig struct {
	border   bool
	rowLines bool
}

// RenderOption adjusts how a table is drawn.
type RenderOption func(*renderConfig)

// WithBorder draws or hides the outer frame.
func WithBorder(show bool) RenderOption {
	return func(c *renderConfig) {
		c.border = show
	}
}

// WithRowSeparator draws a rule between every row.
func WithRowSeparator(show bool) RenderOption {
	return func(c *renderConfig) {
		c.rowLines = show
	}
}

// RenderToString renders headers and rows as a framed, left-aligned table.
func RenderToString(headers []string, rows [][]string, opts ...RenderOption) string {
	var buf bytes.Buffer
	RenderToWriter(&buf, headers, rows, opts...)
	return buf.String()
}

// RenderToWriter is RenderToString writing to w.
func RenderToWriter(w io.Writer, headers []string, rows [][]string, opts ...RenderOption) {
	cfg := renderConfig{border: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetTablePadding(" ")
	table.SetBorder(cfg.border)
	table.SetRowLine(cfg.rowLines)

	table.AppendBulk(rows)
	table.Render()
}
