package export

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"expenses/internal/core"
)

// WriteTable prints the full list as a plain-text table with a total footer.
func WriteTable(w io.Writer, items []core.Expense, cur core.Currency) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Title", "Amount", "Category"})

	if len(items) == 0 {
		t.AppendRow(table.Row{"", "No expenses found.", "", ""})
	}
	for i, e := range items {
		t.AppendRow(table.Row{i + 1, e.Title, cur.Format(e.Amount), e.Category})
	}
	if len(items) > 0 {
		t.AppendFooter(table.Row{"", "Total:", cur.Format(core.Total(items)), ""})
	}

	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()
	return nil
}
