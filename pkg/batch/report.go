package batch

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/message"
)

// Render produces the human-readable run summary: a counts line and, when
// any record failed, a table listing every failure in visitation order.
func (r Report) Render(printer *message.Printer) string {
	var b strings.Builder
	b.WriteString(printer.Sprintf(
		"processed %d records: %d generated, %d skipped, %d failed",
		r.Processed, r.Generated, r.Skipped, r.Failed))
	if r.Housekept > 0 {
		b.WriteString(printer.Sprintf(" (%d housekept)", r.Housekept))
	}
	b.WriteString("\n")

	if len(r.Failures) == 0 {
		return b.String()
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Field", "Record", "Error"})
	for _, f := range r.Failures {
		tw.AppendRow(table.Row{f.Field, f.RecordID, f.Message})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	b.WriteString(tw.Render())
	b.WriteString("\n")
	return b.String()
}
