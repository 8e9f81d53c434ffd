package history

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// Statuses limits the listed records; empty lists every status.
	Statuses     []domain.HistoryStatus
	UnsyncedOnly bool
}

func renderView(records []domain.HistoryRecord, sum summary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Request History"),
		s.header.Render(fmt.Sprintf("items: %d  unsynced: %d", sum.total, sum.unsynced)),
	}
	if breakdown := sum.breakdown(); breakdown != "" {
		lines = append(lines, s.meta.Render(breakdown))
	}

	if len(records) == 0 {
		message := "No history cached."
		if sum.total > 0 && opts.filtered() {
			message = "No records match the filter."
		}
		lines = append(lines, s.empty.Render(message))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, record := range records {
		lines = append(lines, s.section.Render(renderRecord(record, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderRecord(record domain.HistoryRecord, opts RenderOptions, s styles) string {
	badge, ok := s.status[record.Status]
	if !ok {
		badge = s.detail
	}

	createdAt := time.UnixMilli(record.CreatedAt)
	ageStyle := lipgloss.NewStyle().Foreground(ageColor(createdAt, opts.Now))
	head := lipgloss.JoinHorizontal(
		lipgloss.Top,
		badge.Render(string(record.Status)),
		s.id.Render(record.ID),
		" ",
		ageStyle.Render("("+formatAge(createdAt, opts.Now)+")"),
	)
	if record.NeedsSync {
		head += " " + s.warning.Render("[unsynced]")
	}

	parts := []string{head}
	if people := peopleLine(record.HistoryItem); people != "" {
		parts = append(parts, s.detail.Render(people))
	}
	if timing := timingLine(record.HistoryItem); timing != "" {
		parts = append(parts, s.meta.Render(timing))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func peopleLine(item domain.HistoryItem) string {
	var fields []string
	if item.ServiceGroupName != "" {
		fields = append(fields, "group: "+item.ServiceGroupName)
	}
	if item.RequesterName != "" {
		fields = append(fields, "requester: "+item.RequesterName)
	}
	if item.HandlerName != "" {
		fields = append(fields, "handler: "+item.HandlerName)
	}
	return strings.Join(fields, "  ")
}

func timingLine(item domain.HistoryItem) string {
	var fields []string
	if item.StartedAt != nil {
		fields = append(fields, "started "+time.UnixMilli(*item.StartedAt).UTC().Format("15:04:05"))
	}
	if item.CompletedAt != nil {
		fields = append(fields, "completed "+time.UnixMilli(*item.CompletedAt).UTC().Format("15:04:05"))
	}
	if item.WaitTimeSeconds != nil {
		fields = append(fields, "waited "+(time.Duration(*item.WaitTimeSeconds)*time.Second).String())
	}
	return strings.Join(fields, "  ")
}

func formatAge(createdAt, now time.Time) string {
	if now.IsZero() {
		return createdAt.UTC().Format(time.RFC3339)
	}

	age := now.Sub(createdAt)
	switch {
	case age < 0:
		return "just now"
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(math.Floor(age.Hours()/24)))
	}
}

// ageColor fades from bright white for fresh entries to grey after a day.
func ageColor(createdAt, now time.Time) lipgloss.Color {
	if now.IsZero() {
		return lipgloss.Color("255")
	}

	window := 24 * time.Hour
	fresh := window.Seconds() - now.Sub(createdAt).Seconds()
	return interpolateColor(fresh, 0, window.Seconds())
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// 240..255 is the bright end of the ANSI 256 greyscale ramp.
	interpolated := 240.0 + 15.0*normalized
	return lipgloss.Color(fmt.Sprintf("%d", int(interpolated)))
}

// RenderConnections prints one line per topic, sorted by topic name.
func RenderConnections(states map[string]domain.ConnectionState) string {
	s := newStyles()

	topics := make([]string, 0, len(states))
	for topic := range states {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	lines := make([]string, 0, len(topics))
	for _, topic := range topics {
		state := states[topic]
		style := s.offline
		if state == domain.ConnectionConnected {
			style = s.online
		}
		lines = append(lines, s.topic.Render(topic+":")+" "+style.Render(state.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
