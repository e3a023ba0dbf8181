// Package rules holds the identifier and structural predicates shared by the
// validators. Every function here is pure and safe for concurrent use.
package rules

import "github.com/ShayCichocki/dagforge/pkg/models"

// IsValidSpecID reports whether s is a usable DAG identifier: non-empty and
// made only of ASCII letters, digits, '_' and '-'.
func IsValidSpecID(s string) bool {
	return validIdent(s, true)
}

// IsValidTaskID reports whether s is a usable task identifier: non-empty and
// made only of ASCII letters, digits and '_'. Hyphens are not allowed here
// even though DAG ids accept them.
func IsValidTaskID(s string) bool {
	return validIdent(s, false)
}

func validIdent(s string, allowHyphen bool) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		case c == '-' && allowHyphen:
		default:
			return false
		}
	}
	return true
}

// HasSelfDependency reports whether the task lists its own id as a dependency.
// A task without an id never has a self-dependency.
func HasSelfDependency(task models.Task) bool {
	if task.TaskID == "" {
		return false
	}
	for _, dep := range task.Dependencies {
		if dep == task.TaskID {
			return true
		}
	}
	return false
}

// FindDuplicateIDs returns every task_id that appears more than once, each
// listed once, in the order of its first occurrence. Tasks without an id are
// ignored.
func FindDuplicateIDs(tasks []models.Task) []string {
	counts := make(map[string]int, len(tasks))
	var order []string
	for _, t := range tasks {
		if t.TaskID == "" {
			continue
		}
		if counts[t.TaskID] == 0 {
			order = append(order, t.TaskID)
		}
		counts[t.TaskID]++
	}

	var dups []string
	for _, id := range order {
		if counts[id] > 1 {
			dups = append(dups, id)
		}
	}
	return dups
}
