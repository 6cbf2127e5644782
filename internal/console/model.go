// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

// Package console implements an interactive terminal view of the supervised
// hosts and their containers, allowing to start, stop and restart containers.
package console

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/siemens/dockermon"
)

// RefreshInterval is the interval in which the view gets refreshed.
const RefreshInterval = time.Second

// Model is the bubbletea model of the console view.
type Model struct {
	ctx    context.Context
	source Source
	filter Filter

	hosts   []HostSnapshot
	cursor  int
	message string
	err     error
}

var _ tea.Model = Model{}

// Message types for the bubbletea update loop.
type tickMsg time.Time

type actionMsg struct {
	message string
	err     error
}

// New returns a new console model showing the hosts of the specified source,
// filtered by filter. Container commands are bound to ctx.
func New(ctx context.Context, source Source, filter Filter) Model {
	return Model{
		ctx:    ctx,
		source: source,
		filter: filter,
		hosts:  Snapshot(source, filter),
	}
}

// Run runs the console view until the user quits or the context is done.
func Run(ctx context.Context, source Source, filter Filter) error {
	p := tea.NewProgram(New(ctx, source, filter),
		tea.WithContext(ctx),
		tea.WithAltScreen())
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts refreshing the view.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.hosts = Snapshot(m.source, m.filter)
		if n := m.count(); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, tickCmd()

	case actionMsg:
		m.message, m.err = msg.message, msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < m.count()-1 {
				m.cursor++
			}
		case "s":
			return m, m.command("start", func(ctx context.Context, mon *dockermon.ContainerMonitor) error {
				return <-mon.Start(ctx)
			})
		case "x":
			return m, m.command("stop", func(ctx context.Context, mon *dockermon.ContainerMonitor) error {
				return <-mon.Stop(ctx)
			})
		case "r":
			return m, m.command("restart", func(ctx context.Context, mon *dockermon.ContainerMonitor) error {
				return mon.Restart(ctx)
			})
		}
	}
	return m, nil
}

// View renders the current model state.
func (m Model) View() string {
	s := Render(m.hosts, m.cursor)
	switch {
	case m.err != nil:
		s += stoppedStyle.Render("error: " + m.err.Error())
	case m.message != "":
		s += m.message
	}
	return s + helpStyle.Render("↑/↓ select • s start • x stop • r restart • q quit") + "\n"
}

func (m Model) count() int {
	n := 0
	for _, host := range m.hosts {
		n += len(host.Containers)
	}
	return n
}

// selected returns the container snapshot at the cursor.
func (m Model) selected() (ContainerSnapshot, bool) {
	idx := m.cursor
	for _, host := range m.hosts {
		if idx < len(host.Containers) {
			return host.Containers[idx], true
		}
		idx -= len(host.Containers)
	}
	return ContainerSnapshot{}, false
}

// command returns a command running the specified action on the selected
// container.
func (m Model) command(verb string, action func(context.Context, *dockermon.ContainerMonitor) error) tea.Cmd {
	cntr, ok := m.selected()
	if !ok {
		return nil
	}
	ctx, source := m.ctx, m.source
	return func() tea.Msg {
		host, ok := source.Host(cntr.Host)
		if !ok {
			return actionMsg{err: fmt.Errorf("host %s not connected", cntr.Host)}
		}
		mon, ok := host.Container(cntr.Name)
		if !ok {
			return actionMsg{err: fmt.Errorf("container %s not found", cntr.Display)}
		}
		if err := action(ctx, mon); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{message: fmt.Sprintf("%s %s: done", verb, cntr.Display)}
	}
}
