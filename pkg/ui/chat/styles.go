package chat

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

// theme groups reusable styles for chat UI regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	timestamp  lipgloss.Style
	channel    lipgloss.Style
	self       lipgloss.Style
	system     lipgloss.Style
	errorLine  lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
	authors    []lipgloss.Color
}

// defaultTheme defines the retro terminal palette.
func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("54")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("183")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("97")),
		timestamp: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),
		channel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")),
		self: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		system: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("180")),
		errorLine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusBusy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		inputLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("97")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("54")).
			Background(lipgloss.Color("233")).
			Padding(0, 1),
		authors: []lipgloss.Color{"44", "114", "177", "209", "75", "221", "168", "80"},
	}
}

// authorStyle picks a stable color per nickname.
func (t theme) authorStyle(name string) lipgloss.Style {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	color := t.authors[int(h.Sum32()%uint32(len(t.authors)))]

	return lipgloss.NewStyle().Bold(true).Foreground(color)
}
