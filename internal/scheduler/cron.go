package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// CrontabSpec describes the schedule to render as crontab text for users
// who prefer cron over the built-in run loop.
type CrontabSpec struct {
	Binary       string
	VaultPath    string
	CycleEvery   time.Duration
	BriefingAt   string // "15:04" UTC
	ExpirySweep  time.Duration
	IncludeNotes bool
}

// Crontab renders the crontab lines. Pure text generation; nothing is
// installed.
func (c CrontabSpec) Crontab() (string, error) {
	cycleMinutes := int(c.CycleEvery.Minutes())
	if cycleMinutes < 1 {
		cycleMinutes = 1
	}
	if cycleMinutes > 59 {
		return "", fmt.Errorf("crontab: cycle interval %s does not fit a minute field", c.CycleEvery)
	}

	briefing, err := time.Parse("15:04", c.BriefingAt)
	if err != nil {
		return "", fmt.Errorf("crontab: invalid briefing time %q", c.BriefingAt)
	}

	sweepMinutes := int(c.ExpirySweep.Minutes())
	if sweepMinutes < 1 {
		sweepMinutes = 60
	}

	var b strings.Builder
	if c.IncludeNotes {
		b.WriteString("# steward schedule. Install with: crontab -l | { cat; steward cron; } | crontab -\n")
	}
	fmt.Fprintf(&b, "*/%d * * * * %s --vault %q cycle\n", cycleMinutes, c.Binary, c.VaultPath)
	fmt.Fprintf(&b, "%d %d * * * %s --vault %q cycle --briefing\n", briefing.Minute(), briefing.Hour(), c.Binary, c.VaultPath)
	if sweepMinutes <= 59 {
		fmt.Fprintf(&b, "*/%d * * * * %s --vault %q approvals --check-expired\n", sweepMinutes, c.Binary, c.VaultPath)
	} else {
		fmt.Fprintf(&b, "0 * * * * %s --vault %q approvals --check-expired\n", c.Binary, c.VaultPath)
	}
	return b.String(), nil
}
