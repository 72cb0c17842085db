// Package progress drives a small bubbletea program that shows live
// per-function compile progress for -vb (verbose) builds, in the same
// tea.Model shape the retrieved attacker-dashboard TUI uses for its own
// live run view, generalized from "requests completed" to "functions
// lowered to machine code".
package progress

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fnMsg string
type doneMsg struct{}

// model is the bubbletea state for one compilation's progress display.
type model struct {
	total  int
	done   int
	last   string
	events <-chan string
	quit   <-chan struct{}
}

func newModel(total int, events <-chan string, quit <-chan struct{}) model {
	return model{total: total, events: events, quit: quit}
}

func (m model) Init() tea.Cmd { return m.waitForEvent }

func (m model) waitForEvent() tea.Msg {
	select {
	case name, ok := <-m.events:
		if !ok {
			return doneMsg{}
		}
		return fnMsg(name)
	case <-m.quit:
		return doneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fnMsg:
		m.done++
		m.last = string(msg)
		return m, m.waitForEvent
	case doneMsg:
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

var (
	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (m model) View() string {
	bar := barStyle.Render(fmt.Sprintf("compiling %d/%d", m.done, m.total))
	if m.last == "" {
		return bar + "\n"
	}
	return bar + " " + dimStyle.Render(m.last) + "\n"
}

// Reporter is returned by Run. Its Report method is safe to pass straight
// to codegen.CompileAll as its progress argument, and its Stop method
// must be called (exactly once) after the compile finishes.
type Reporter struct {
	events chan string
	stop   chan struct{}
	done   chan struct{}
}

// Run starts the progress program in the background for a compile of
// total functions, returning a Reporter. If stdout isn't a TTY, bubbletea
// falls back to its non-interactive renderer and the program still runs
// to completion.
func Run(total int) *Reporter {
	events := make(chan string, 256)
	quit := make(chan struct{})
	done := make(chan struct{})
	p := tea.NewProgram(newModel(total, events, quit))
	go func() {
		_, _ = p.Run()
		close(done)
	}()
	return &Reporter{events: events, stop: quit, done: done}
}

// Report records one finished function's name.
func (r *Reporter) Report(name string) {
	select {
	case r.events <- name:
	default:
		// Display is falling behind; drop rather than block codegen.
	}
}

// Stop signals the progress program to exit and waits for it to finish
// rendering.
func (r *Reporter) Stop() {
	close(r.stop)
	<-r.done
}
