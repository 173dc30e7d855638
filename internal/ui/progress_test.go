package ui_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"bkup-go/internal/bk"
	"bkup-go/internal/ui"
)

func update(t *testing.T, m ui.Model, msg tea.Msg) (ui.Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	got, ok := next.(ui.Model)
	if !ok {
		t.Fatalf("Update() returned %T, want ui.Model", next)
	}
	return got, cmd
}

func TestModel_ProgressUpdatesView(t *testing.T) {
	m := ui.NewModel("/backup", func() {})

	if view := m.View(); !strings.Contains(view, "Preparing") {
		t.Errorf("initial View() = %q, want Preparing", view)
	}

	m, cmd := update(t, m, ui.ProgressMsg(bk.Progress{
		Item: 0, Items: 2, ItemFile: 1, ItemFiles: 2, Files: 1,
		Target: "docs/a.txt",
		Entry:  bk.LogEntry{Path: "/src/docs/a.txt", Outcome: bk.OutcomeCopied},
	}))
	if cmd != nil {
		t.Error("ProgressMsg should not return a command")
	}

	view := m.View()
	for _, want := range []string{"/backup", "25%", "Item 1/2", "file 1/2", "docs/a.txt", "/src/docs/a.txt - copied"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_KeepsRecentEntries(t *testing.T) {
	m := ui.NewModel("/backup", nil)
	for i := range 8 {
		m, _ = update(t, m, ui.ProgressMsg(bk.Progress{
			Items: 1, ItemFile: i + 1, ItemFiles: 8,
			Entry: bk.LogEntry{Path: "/src/f" + string(rune('0'+i)), Outcome: bk.OutcomeCopied},
		}))
	}

	view := m.View()
	if strings.Contains(view, "/src/f2 - copied") {
		t.Error("View() still shows an entry older than the last five")
	}
	if !strings.Contains(view, "/src/f7 - copied") {
		t.Error("View() missing the latest entry")
	}
}

func TestModel_CancelKey(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		t.Run(key.String(), func(t *testing.T) {
			calls := 0
			m := ui.NewModel("/backup", func() { calls++ })

			m, cmd := update(t, m, key)
			if cmd != nil {
				t.Error("cancel key should wait for DoneMsg instead of quitting")
			}
			m, _ = update(t, m, key)

			if calls != 1 {
				t.Errorf("cancel called %d times, want 1", calls)
			}
			if !strings.Contains(m.View(), "Cancelling") {
				t.Error("View() does not show the cancelling state")
			}
		})
	}
}

func TestModel_DoneQuits(t *testing.T) {
	m := ui.NewModel("/backup", nil)

	summary := bk.Summary{FilesCopied: 3, FoldersCreated: 1, FilesSkipped: 2, FilesFailed: 1, BytesCopied: 2048, Destination: "/backup"}
	m, cmd := update(t, m, ui.DoneMsg{Summary: summary, Err: errors.New("disk full")})
	if cmd == nil {
		t.Fatal("DoneMsg should return tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("DoneMsg command is not tea.Quit")
	}
	if m.Done() == nil || m.Done().Summary != summary {
		t.Errorf("Done() = %+v, want summary %+v", m.Done(), summary)
	}

	view := m.View()
	for _, want := range []string{"Backup complete", "Files copied:    3", "(1 failed)", "disk full"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModel_LongTargetIsTruncated(t *testing.T) {
	m := ui.NewModel("/backup", nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 10})

	long := strings.Repeat("d/", 30) + "file.txt"
	m, _ = update(t, m, ui.ProgressMsg(bk.Progress{Items: 1, ItemFile: 1, ItemFiles: 1, Target: long}))

	view := m.View()
	if strings.Contains(view, long) {
		t.Error("View() shows the full target despite the narrow window")
	}
	if !strings.Contains(view, "...") || !strings.Contains(view, "file.txt") {
		t.Errorf("View() should keep the tail of the target:\n%s", view)
	}
}

func TestModel_InitHasNoCommand(t *testing.T) {
	var cancel context.CancelFunc
	if cmd := ui.NewModel("/backup", cancel).Init(); cmd != nil {
		t.Error("Init() returned a command")
	}
}
