package chaos

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds chaos configuration
type Config struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Profile string `env:"PROFILE"`
	// FailPct fails this percentage of raw inserts
	FailPct int `env:"FAIL_PCT" envDefault:"0"`
	// FailAfter fails the N-th raw insert of every transaction (1-based); 0 disables
	FailAfter int `env:"FAIL_AFTER" envDefault:"0"`
	// FailCommit fails every commit
	FailCommit bool  `env:"FAIL_COMMIT" envDefault:"false"`
	DelayMsMin int   `env:"DELAY_MS_MIN" envDefault:"0"`
	DelayMsMax int   `env:"DELAY_MS_MAX" envDefault:"0"`
	Seed       int64 `env:"SEED" envDefault:"1"`
}

// ParseProfile parses a profile string like "fail-pct=30,fail-after=5,delay=50-250"
func ParseProfile(profile string) (failPct, failAfter, delayMin, delayMax int, err error) {
	if profile == "" {
		return 0, 0, 0, 0, nil
	}

	for _, part := range strings.Split(profile, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "fail-pct="):
			failPct, err = strconv.Atoi(strings.TrimPrefix(part, "fail-pct="))
			if err != nil {
				return 0, 0, 0, 0, fmt.Errorf("invalid fail-pct: %w", err)
			}
		case strings.HasPrefix(part, "fail-after="):
			failAfter, err = strconv.Atoi(strings.TrimPrefix(part, "fail-after="))
			if err != nil {
				return 0, 0, 0, 0, fmt.Errorf("invalid fail-after: %w", err)
			}
		case strings.HasPrefix(part, "delay="):
			delayParts := strings.Split(strings.TrimPrefix(part, "delay="), "-")
			if len(delayParts) != 2 {
				return 0, 0, 0, 0, fmt.Errorf("invalid delay %q: want min-max", part)
			}
			delayMin, err = strconv.Atoi(delayParts[0])
			if err != nil {
				return 0, 0, 0, 0, fmt.Errorf("invalid delay min: %w", err)
			}
			delayMax, err = strconv.Atoi(delayParts[1])
			if err != nil {
				return 0, 0, 0, 0, fmt.Errorf("invalid delay max: %w", err)
			}
		case part == "":
		default:
			return 0, 0, 0, 0, fmt.Errorf("unknown chaos profile entry %q", part)
		}
	}

	return failPct, failAfter, delayMin, delayMax, nil
}
