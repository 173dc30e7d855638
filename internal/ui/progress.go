package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"bkup-go/internal/bk"
)

const (
	barWidth   = 40
	recentSize = 5
)

// ProgressMsg carries one event from a running backup.
type ProgressMsg bk.Progress

// DoneMsg is sent once the event sequence is exhausted.
type DoneMsg struct {
	Summary bk.Summary
	Err     error
}

// Model is the bubbletea model for the run progress screen.
type Model struct {
	destination string
	cancel      context.CancelFunc

	progress  bk.Progress
	started   bool
	recent    []bk.LogEntry
	canceling bool
	done      *DoneMsg
	width     int
}

// NewModel creates the progress screen for a run to destination.
// cancel is called when the user interrupts the run.
func NewModel(destination string, cancel context.CancelFunc) Model {
	return Model{destination: destination, cancel: cancel, width: 80}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			// The run stops at the next file; DoneMsg ends the program.
			if !m.canceling && m.cancel != nil {
				m.cancel()
			}
			m.canceling = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case ProgressMsg:
		m.progress = bk.Progress(msg)
		m.started = true
		m.recent = append(m.recent, msg.Entry)
		if len(m.recent) > recentSize {
			m.recent = m.recent[len(m.recent)-recentSize:]
		}
		return m, nil

	case DoneMsg:
		m.done = &msg
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Backing up to "+m.destination) + "\n\n")

	if m.done != nil {
		s.WriteString(FormatSummary(m.done.Summary))
		if m.done.Err != nil {
			s.WriteString(errorStyle.Render("Log error: "+m.done.Err.Error()) + "\n")
		}
		return s.String()
	}

	percent := 0
	if m.started {
		percent = m.progress.Percent()
	}
	s.WriteString(boxStyle.Render(renderBar(percent)) + "\n")

	if m.started {
		item := fmt.Sprintf("Item %d/%d", m.progress.Item+1, m.progress.Items)
		file := fmt.Sprintf("file %d/%d", m.progress.ItemFile, m.progress.ItemFiles)
		s.WriteString(dimStyle.Render(item+", "+file) + "\n")
		s.WriteString(targetStyle.Render(truncate(m.progress.Target, m.width-2)) + "\n\n")
		for _, e := range m.recent {
			s.WriteString(renderEntry(e, m.width) + "\n")
		}
	} else {
		s.WriteString(dimStyle.Render("Preparing...") + "\n")
	}

	s.WriteString("\n")
	if m.canceling {
		s.WriteString(skippedStyle.Render("Cancelling after the current file...") + "\n")
	} else {
		s.WriteString(dimStyle.Render("q / ctrl+c to cancel") + "\n")
	}
	return s.String()
}

// Done returns the final message, or nil while the run is in progress.
func (m Model) Done() *DoneMsg {
	return m.done
}

func renderBar(percent int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return barStyle.Render(bar) + fmt.Sprintf(" %3d%%", percent)
}

func renderEntry(e bk.LogEntry, width int) string {
	line := truncate(e.String(), width-2)
	switch e.Outcome {
	case bk.OutcomeCopied:
		return copiedStyle.Render(line)
	case bk.OutcomeSkipped:
		return skippedStyle.Render(line)
	default:
		return errorStyle.Render(line)
	}
}

// truncate shortens s to n runes, keeping the tail where file names are.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}

// Run shows the progress screen while exec's events are consumed and
// returns the final summary. cancel must cancel the context exec was
// started with.
func Run(exec *bk.Execution, cancel context.CancelFunc, in io.Reader, out io.Writer) (bk.Summary, error) {
	p := tea.NewProgram(
		NewModel(exec.Job().Destination, cancel),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range exec.Events() {
			p.Send(ProgressMsg(ev))
		}
		p.Send(DoneMsg{Summary: exec.Summary(), Err: exec.Err()})
	}()

	_, err := p.Run()
	if err != nil {
		cancel()
	}
	<-consumed
	if err != nil {
		return exec.Summary(), fmt.Errorf("progress display: %w", err)
	}
	return exec.Summary(), exec.Err()
}
