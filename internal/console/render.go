// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/siemens/dockermon"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#B4BEFE"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#CBA6F7"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#89B4FA"))

	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6ADC8")).Padding(1, 0)
)

// column widths of the container table.
var columns = []struct {
	title string
	width int
}{
	{"CONTAINER", 24},
	{"STATE", 11},
	{"STATUS", 24},
	{"CPU", 8},
	{"MEMORY", 18},
	{"NET ↑", 12},
	{"NET ↓", 12},
}

const mib = 1024 * 1024

// Render returns the textual representation of the specified host snapshots,
// highlighting the container at the cursor position, counting containers
// over all hosts. A negative cursor doesn't highlight any container.
func Render(hosts []HostSnapshot, cursor int) string {
	var b strings.Builder
	idx := 0
	for _, host := range hosts {
		b.WriteString(titleStyle.Render(hostTitle(host)))
		b.WriteString("\n")
		if !host.Connected {
			b.WriteString(stoppedStyle.Render("  not connected"))
			b.WriteString("\n\n")
			continue
		}
		titles := make([]string, len(columns))
		for i, col := range columns {
			titles[i] = col.title
		}
		b.WriteString(headerStyle.Render(row(titles)))
		b.WriteString("\n")
		for _, cntr := range host.Containers {
			line := row(containerCells(cntr))
			if idx == cursor {
				line = selectedStyle.Render(line)
			} else {
				line = stateStyle(cntr.Info.State).Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
			idx++
		}
		b.WriteString("\n")
	}
	return b.String()
}

func hostTitle(host HostSnapshot) string {
	if !host.Connected {
		return host.Name
	}
	info := host.Info
	title := fmt.Sprintf("%s: engine %s, %d/%d containers running",
		host.Name, info.Version, info.ContainersRunning, info.Containers)
	if info.NCPU > 0 {
		title += fmt.Sprintf(", %d CPUs", info.NCPU)
	}
	if info.MemTotal > 0 {
		title += ", " + humanize.IBytes(uint64(info.MemTotal))
	}
	if info.CPUPercent != nil {
		title += fmt.Sprintf(", CPU %s%%", strconv.FormatFloat(*info.CPUPercent, 'f', -1, 64))
	}
	if info.MemoryMB != nil {
		title += ", memory " + mebibytes(info.MemoryMB)
	}
	if !info.Updated.IsZero() {
		title += ", updated " + humanize.Time(info.Updated)
	}
	return title
}

func containerCells(cntr ContainerSnapshot) []string {
	info := cntr.Info
	state := string(info.State)
	status := info.Status
	if !info.Observed {
		state, status = "?", "not yet observed"
	}
	stats := cntr.Stats
	memory := mebibytes(stats.MemoryMB)
	if stats.MemoryMB != nil && stats.MemoryLimitMB != nil {
		memory += " / " + mebibytes(stats.MemoryLimitMB)
	}
	return []string{
		cntr.Display,
		state,
		status,
		percent(stats.CPUPercent),
		memory,
		speed(stats.NetworkSpeedUpKB),
		speed(stats.NetworkSpeedDownKB),
	}
}

func row(cells []string) string {
	rendered := make([]string, len(cells))
	for i, cell := range cells {
		w := columns[i].width
		if len([]rune(cell)) > w-1 {
			cell = string([]rune(cell)[:w-2]) + "…"
		}
		rendered[i] = lipgloss.NewStyle().Width(w).Render(cell)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func stateStyle(state dockermon.ContainerState) lipgloss.Style {
	switch state {
	case dockermon.StateRunning:
		return runningStyle
	case dockermon.StatePaused, dockermon.StateRestarting:
		return pausedStyle
	default:
		return stoppedStyle
	}
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
}

func mebibytes(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.IBytes(uint64(*v * mib))
}

func speed(kib *float64) string {
	if kib == nil {
		return "-"
	}
	return humanize.IBytes(uint64(*kib*1024)) + "/s"
}
