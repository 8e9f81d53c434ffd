package history

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bnema/pttsync/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

var statusOrder = []domain.HistoryStatus{
	domain.HistoryStatusPending,
	domain.HistoryStatusInProgress,
	domain.HistoryStatusCompleted,
	domain.HistoryStatusCancelled,
}

// summary describes the whole cache, independent of any filter.
type summary struct {
	total    int
	unsynced int
	byStatus map[domain.HistoryStatus]int
}

func summarize(records []domain.HistoryRecord) summary {
	sum := summary{total: len(records), byStatus: make(map[domain.HistoryStatus]int, len(statusOrder))}
	for _, record := range records {
		sum.byStatus[record.Status]++
		if record.NeedsSync {
			sum.unsynced++
		}
	}
	return sum
}

// breakdown lists non-zero status counts in lifecycle order.
func (s summary) breakdown() string {
	var fields []string
	for _, status := range statusOrder {
		if n := s.byStatus[status]; n > 0 {
			fields = append(fields, fmt.Sprintf("%s=%d", status, n))
		}
	}
	return strings.Join(fields, " ")
}

func (o RenderOptions) filtered() bool {
	return len(o.Statuses) > 0 || o.UnsyncedOnly
}

// Keep reports whether record passes the status and unsynced filters.
func (o RenderOptions) Keep(record domain.HistoryRecord) bool {
	if o.UnsyncedOnly && !record.NeedsSync {
		return false
	}
	return len(o.Statuses) == 0 || slices.Contains(o.Statuses, record.Status)
}

type renderReadyMsg struct{}

type model struct {
	visible []domain.HistoryRecord
	summary summary
	opts    RenderOptions
	styles  styles
	output  string
}

func newModel(records []domain.HistoryRecord, opts RenderOptions) model {
	visible := make([]domain.HistoryRecord, 0, len(records))
	for _, record := range records {
		if opts.Keep(record) {
			visible = append(visible, record)
		}
	}

	return model{
		visible: visible,
		summary: summarize(records),
		opts:    opts,
		styles:  newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg {
		return renderReadyMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case renderReadyMsg:
		m.output = renderView(m.visible, m.summary, m.opts, m.styles)
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m model) View() string {
	return m.output
}

// Render lays out the cached history list, newest first, keeping only the
// records opts selects. The header always counts the whole cache.
func Render(records []domain.HistoryRecord, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newModel(records, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := finalModel.(model)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
