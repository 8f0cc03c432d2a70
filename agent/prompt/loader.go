package prompt

import (
	_ "embed"
	"strings"
	"time"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/resume.txt
	resumeRaw string
)

// System returns the intake agent's system instruction with the current date
// substituted, so the model interprets relative dates correctly.
func System(now time.Time) string {
	raw := strings.TrimSpace(systemRaw)
	return strings.ReplaceAll(raw, "{{date}}", now.Format("January 02, 2006"))
}

// Resume is the context note prepended when a returning customer's prior
// conversation window is reloaded.
func Resume() string {
	return strings.TrimSpace(resumeRaw)
}
