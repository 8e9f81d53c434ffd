package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

type fetchDoneMsg struct {
	summary string
	err     error
}

type fetchSpinnerModel struct {
	spinner spinner.Model
	label   string
	fetch   tea.Cmd
	started time.Time
	elapsed time.Duration
	summary string
	err     error
	done    bool
}

var spinnerDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))

func newFetchSpinnerModel(label string, fetch tea.Cmd, started time.Time) fetchSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return fetchSpinnerModel{
		spinner: s,
		label:   label,
		fetch:   fetch,
		started: started,
	}
}

func (m fetchSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch)
}

func (m fetchSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.elapsed = time.Since(m.started)
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case fetchDoneMsg:
		m.done = true
		m.elapsed = time.Since(m.started)
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m fetchSpinnerModel) View() string {
	if m.done {
		if m.err != nil || m.summary == "" {
			return ""
		}
		return spinnerDoneStyle.Render(fmt.Sprintf("%s in %s", m.summary, m.elapsed.Round(100*time.Millisecond))) + "\n"
	}

	label := m.label
	if m.elapsed >= time.Second {
		label += fmt.Sprintf(" (%ds)", int(m.elapsed.Seconds()))
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), label)
}

// runWithSpinner shows label on output while fetch runs and the summary fetch
// returns once it succeeds. Without a terminal it just runs fetch, so cron
// jobs and pipes get no control sequences.
func runWithSpinner(ctx context.Context, output io.Writer, label string, fetch func(context.Context) (string, error)) error {
	if !isTerminal(output) {
		_, err := fetch(ctx)
		return err
	}

	fetchCmd := func() tea.Msg {
		summary, err := fetch(ctx)
		return fetchDoneMsg{summary: summary, err: err}
	}

	p := tea.NewProgram(
		newFetchSpinnerModel(label, fetchCmd, time.Now()),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(fetchSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
