// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"fmt"
	"time"

	"github.com/siemens/dockermon/engine"
)

// ContainerState is the lifecycle state of a container as last observed. It
// mirrors the container engine's own states.
type ContainerState string

// Container lifecycle states; any raw engine state not listed here maps onto
// StateUnknown, with the raw state kept in [ContainerInfo.RawState].
const (
	StateUnknown    ContainerState = "unknown"
	StateCreated    ContainerState = "created"
	StateRunning    ContainerState = "running"
	StatePaused     ContainerState = "paused"
	StateRestarting ContainerState = "restarting"
	StateExited     ContainerState = "exited"
)

// ParseState maps a raw engine container state onto a ContainerState.
func ParseState(raw string) ContainerState {
	switch s := ContainerState(raw); s {
	case StateCreated, StateRunning, StatePaused, StateRestarting, StateExited:
		return s
	}
	return StateUnknown
}

// Alive returns true for running and paused containers, that is, containers
// with resource usage statistics worth fetching.
func (s ContainerState) Alive() bool {
	return s == StateRunning || s == StatePaused
}

// StatusText returns a Docker CLI-like status line for the inspected
// container, such as “Up 6 days” or “Exited (1) 2 months ago”, relative to
// now.
func StatusText(insp engine.Inspection, now time.Time) string {
	switch ParseState(insp.Status) {
	case StateRunning:
		return "Up " + RelativeDuration(insp.StartedAt, now)
	case StatePaused:
		return "Up " + RelativeDuration(insp.StartedAt, now) + " (Paused)"
	case StateExited:
		return fmt.Sprintf("Exited (%d) %s ago",
			insp.ExitCode, RelativeDuration(insp.FinishedAt, now))
	case StateCreated:
		return "Created " + RelativeDuration(insp.Created, now) + " ago"
	case StateRestarting:
		return "Restarting"
	}
	return "None (" + insp.Status + ")"
}

// RelativeDuration returns the calendar-aware difference between then and
// now in terms of only the largest non-zero unit, ranging from years down to
// seconds, such as “1 hour” for 90 minutes. Points in time in the future are
// taken as “0 seconds”.
func RelativeDuration(then, now time.Time) string {
	d := relativeDelta(then, now)
	switch {
	case d.years != 0:
		return plural(d.years, "year")
	case d.months != 0:
		return plural(d.months, "month")
	case d.days != 0:
		return plural(d.days, "day")
	case d.hours != 0:
		return plural(d.hours, "hour")
	case d.minutes != 0:
		return plural(d.minutes, "minute")
	}
	return plural(d.seconds, "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// delta is a calendar difference broken down into its units.
type delta struct {
	years, months, days, hours, minutes, seconds int
}

// relativeDelta breaks down the difference between then and now (then not
// after now) into whole calendar months and the remaining days, hours,
// minutes and seconds. Adding months to then clamps to the last day of the
// resulting month, so Jan 31st plus one month is Feb 28th (or 29th).
func relativeDelta(then, now time.Time) delta {
	then = then.UTC()
	now = now.UTC()
	if !then.Before(now) {
		return delta{}
	}
	months := (now.Year()-then.Year())*12 + int(now.Month()-then.Month())
	anchor := addMonths(then, months)
	for months > 0 && anchor.After(now) {
		months--
		anchor = addMonths(then, months)
	}
	rem := now.Sub(anchor)
	days := int(rem / (24 * time.Hour))
	rem -= time.Duration(days) * 24 * time.Hour
	hours := int(rem / time.Hour)
	rem -= time.Duration(hours) * time.Hour
	minutes := int(rem / time.Minute)
	rem -= time.Duration(minutes) * time.Minute
	return delta{
		years:   months / 12,
		months:  months % 12,
		days:    days,
		hours:   hours,
		minutes: minutes,
		seconds: int(rem / time.Second),
	}
}

// addMonths adds the specified number of months to t, clamping the day to the
// length of the resulting month.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
