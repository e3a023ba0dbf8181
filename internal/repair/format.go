package repair

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/dagforge/pkg/models"
)

// FormatErrors renders entries as a numbered block, one per line:
//
//	1. [schema:duplicate] Duplicate task_id: "t1" (tasks[1].task_id)
//	2. [python:syntax] Unexpected indent at line 12
//
// The format is stable; prompts and CLI output both rely on it.
func FormatErrors(entries []models.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, e.Type, e.Message)
		if e.Field != "" {
			fmt.Fprintf(&b, " (%s)", e.Field)
		}
		if e.Line != nil {
			fmt.Fprintf(&b, " at line %d", *e.Line)
		}
		if i < len(entries)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
