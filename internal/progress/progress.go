// Package progress computes task and project completion percentages from date
// fields. Both functions are pure; callers pass the clock in so results are
// reproducible.
package progress

import (
	"time"

	"planpilot/internal/models"
)

// TaskProgress returns a task's completion percentage in [0, 100].
//
// A recorded actual end means done (100). A started task is measured as
// elapsed time against the window from its actual start to its planned end,
// clamped to [0, 100]; an empty or inverted window reads 0. Anything else
// (not started, or started with no planned end) is 0.
func TaskProgress(task models.Task, now time.Time) float64 {
	if task.ActualEndDate != nil {
		return 100
	}
	if task.ActualStartDate == nil || task.PlannedEndDate == nil {
		return 0
	}

	totalDays := daysBetween(*task.ActualStartDate, *task.PlannedEndDate)
	if totalDays <= 0 {
		return 0
	}
	elapsedDays := daysBetween(*task.ActualStartDate, now)
	pct := float64(elapsedDays) / float64(totalDays) * 100
	return clamp(pct, 0, 100)
}

// ProjectProgress returns a project's completion percentage as total actual
// days worked over total planned days.
//
// Unlike TaskProgress this is intentionally NOT capped at 100: a project whose
// tasks have consumed more days than planned legitimately reads above 100%,
// which is how schedule overrun is surfaced.
func ProjectProgress(tasks []models.Task, now time.Time) float64 {
	if len(tasks) == 0 {
		return 0
	}

	var totalPlannedDays float64
	for _, task := range tasks {
		if task.PlannedStartDate != nil && task.PlannedEndDate != nil {
			if d := daysBetween(*task.PlannedStartDate, *task.PlannedEndDate); d > 0 {
				totalPlannedDays += float64(d)
			}
		}
	}
	if totalPlannedDays == 0 {
		return 0
	}

	var totalActualDays float64
	for _, task := range tasks {
		switch {
		case task.ActualStartDate != nil && task.ActualEndDate != nil:
			if d := daysBetween(*task.ActualStartDate, *task.ActualEndDate); d > 0 {
				totalActualDays += float64(d)
			}
		case task.ActualStartDate != nil:
			if d := daysBetween(*task.ActualStartDate, now); d > 0 {
				totalActualDays += float64(d)
			}
		}
	}

	return totalActualDays / totalPlannedDays * 100
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
