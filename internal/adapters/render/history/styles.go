package history

import (
	"github.com/bnema/pttsync/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	id      lipgloss.Style
	detail  lipgloss.Style
	meta    lipgloss.Style
	warning lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
	topic   lipgloss.Style
	online  lipgloss.Style
	offline lipgloss.Style
	status  map[domain.HistoryStatus]lipgloss.Style
}

func newStyles() styles {
	badge := lipgloss.NewStyle().Bold(true).Width(12)
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		id:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		topic:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		online:  lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		offline: lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		status: map[domain.HistoryStatus]lipgloss.Style{
			domain.HistoryStatusPending:    badge.Foreground(lipgloss.Color("221")),
			domain.HistoryStatusInProgress: badge.Foreground(lipgloss.Color("39")),
			domain.HistoryStatusCompleted:  badge.Foreground(lipgloss.Color("78")),
			domain.HistoryStatusCancelled:  badge.Foreground(lipgloss.Color("244")),
		},
	}
}
