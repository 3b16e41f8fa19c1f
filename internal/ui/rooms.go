package ui

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mossy-p/emocall/internal/models"
)

// RoomsTable renders the operator room listing.
func RoomsTable(rooms []models.RoomInfo) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Room", "Participants"})

	total := 0
	for _, r := range rooms {
		t.AppendRow(table.Row{r.ID, r.Participants})
		total += r.Participants
	}
	t.AppendFooter(table.Row{"Total", total})

	return t.Render()
}
