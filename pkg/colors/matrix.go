// Package colors renders the task matrix for the terminal.
package colors

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harrisonrobin/quadra/pkg/model"
)

// DefaultColor is used for anything outside the four quadrants.
const DefaultColor = lipgloss.Color("14")

var palette = map[model.Quadrant]lipgloss.Color{
	model.UrgentImportant:       lipgloss.Color("196"),
	model.NotUrgentImportant:    lipgloss.Color("33"),
	model.UrgentNotImportant:    lipgloss.Color("214"),
	model.NotUrgentNotImportant: lipgloss.Color("241"),
}

var (
	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	descriptionStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Italic(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))
)

func ColorFor(q model.Quadrant) lipgloss.Color {
	if c, ok := palette[q]; ok {
		return c
	}
	return DefaultColor
}

// ShortID is the id prefix shown next to a task. Commands accept the full id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderQuadrant draws one bordered box holding tasks in the given order.
func RenderQuadrant(q model.Quadrant, tasks []model.Task, width int) string {
	color := ColorFor(q)
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(color).
		Render(fmt.Sprintf("%s (%d)", q.Label(), len(tasks)))

	lines := []string{title}
	if len(tasks) == 0 {
		lines = append(lines, emptyStyle.Render("nothing here"))
	}
	for _, t := range tasks {
		lines = append(lines, idStyle.Render(ShortID(t.ID))+" "+t.Title)
		if d := strings.TrimSpace(t.Description); d != "" {
			lines = append(lines, "         "+descriptionStyle.Render(d))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

// RenderMatrix lays the four quadrants out as a 2x2 grid that fits in width columns.
func RenderMatrix(c *model.Collection, width int) string {
	cell := width/2 - 4
	if cell < 20 {
		cell = 20
	}

	qs := model.Quadrants()
	boxes := make([]string, len(qs))
	for i, q := range qs {
		boxes[i] = RenderQuadrant(q, c.ByQuadrant(q), cell)
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top, boxes[0], boxes[1])
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, boxes[2], boxes[3])
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}
