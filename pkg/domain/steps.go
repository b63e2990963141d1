package domain

import "strings"

// SplitSteps breaks a reply into its non-empty steps. A reply without a
// delimiter is a single step.
func SplitSteps(reply string) []string {
	parts := strings.Split(reply, StepDelimiter)
	steps := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			steps = append(steps, p)
		}
	}
	return steps
}
