package change

import (
	"fmt"

	"github.com/mhalle/vost/store"
)

// AutoMessage derives a commit message from a report, per spec.md §4.3.
func AutoMessage(r *Report) string {
	total := len(r.Add) + len(r.Update) + len(r.Delete)
	if total == 0 {
		return "No changes"
	}
	if total == 1 {
		return singleChangeMessage(r)
	}
	if r.Operation != "" {
		return fmt.Sprintf("Batch %s: +%d ~%d -%d", r.Operation, len(r.Add), len(r.Update), len(r.Delete))
	}
	return fmt.Sprintf("Batch: +%d ~%d -%d", len(r.Add), len(r.Update), len(r.Delete))
}

func singleChangeMessage(r *Report) string {
	switch {
	case len(r.Add) == 1:
		return "+ " + r.Add[0].Path + modeSuffix(r.Add[0].Mode)
	case len(r.Update) == 1:
		return "~ " + r.Update[0].Path + modeSuffix(r.Update[0].Mode)
	default:
		return "- " + r.Delete[0].Path + modeSuffix(r.Delete[0].Mode)
	}
}

func modeSuffix(mode store.FileMode) string {
	switch {
	case mode.IsSymlink():
		return " (link)"
	case mode.IsExecutable():
		return " (executable)"
	default:
		return ""
	}
}
