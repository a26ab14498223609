package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Planned is one computed member of a reminder set before persistence.
type Planned struct {
	FireAt  time.Time
	Message string
}

// daysUntil counts calendar days between now's date and target's date in
// their location. Rounding absorbs DST transitions (23h/25h days).
func daysUntil(now, target time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	b := time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, target.Location())
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// PlanLeadSequence computes the reminder set for a target date+time.
//
// With D calendar days until the target:
//
//	D <= 0          one reminder at the target, message unmodified
//	D == 1          "Today: " reminder at the target only
//	D > 1           a first lead min(4, D/2) days before the target
//	D > 2           an additional lead 2 days before the target
//
// When the first lead lands on the 2-day lead (D of 4 or 5) only the 2-day
// lead is kept. The result is sorted ascending and never contains a
// fire-time after the target.
func PlanLeadSequence(now, target time.Time, message string) []Planned {
	d := daysUntil(now, target)
	if d <= 0 {
		return []Planned{{FireAt: target, Message: message}}
	}

	var out []Planned
	firstLead := 0
	if d > 1 {
		firstLead = d / 2
		if firstLead > 4 {
			firstLead = 4
		}
	}
	if firstLead > 0 && !(d > 2 && firstLead == 2) {
		out = append(out, Planned{
			FireAt:  target.AddDate(0, 0, -firstLead),
			Message: fmt.Sprintf("Upcoming in %d days: %s", firstLead, message),
		})
	}
	if d > 2 {
		out = append(out, Planned{
			FireAt:  target.AddDate(0, 0, -2),
			Message: "Coming up in 2 days: " + message,
		})
	}
	out = append(out, Planned{FireAt: target, Message: "Today: " + message})

	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}
