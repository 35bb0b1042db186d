package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lexcodex/godiagram/persistence"
)

var (
	journalHeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	journalCellStyle     = lipgloss.NewStyle().Padding(0, 1)
	journalInboundStyle  = journalCellStyle.Foreground(lipgloss.Color("86"))
	journalOutboundStyle = journalCellStyle.Foreground(lipgloss.Color("220"))
)

// writeJournal prints entries as a table, oldest first.
func writeJournal(w io.Writer, entries []persistence.Entry) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers("TIME", "SESSION", "DIR", "KIND", "REF", "RESULT")
	for _, e := range entries {
		t.Row(e.Timestamp.Local().Format(time.DateTime), e.Session, string(e.Direction), e.Kind, e.Ref, e.Result)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return journalHeaderStyle
		case col == 2 && row < len(entries) && entries[row].Direction == persistence.DirectionInbound:
			return journalInboundStyle
		case col == 2:
			return journalOutboundStyle
		default:
			return journalCellStyle
		}
	})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
