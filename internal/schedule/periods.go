package schedule

import (
	"fmt"
	"time"

	"billtrack/internal/core"
)

// Boundaries generates the configured number of pay period start dates:
// P[0] is the anchor paycheck date and every later boundary is one stride
// after the previous. The whole sequence regenerates on any config change;
// nothing is incremental.
func Boundaries(cfg core.PayConfig) ([]core.CivilDate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stride, err := cfg.StrideDays()
	if err != nil {
		return nil, err
	}
	out := make([]core.CivilDate, cfg.PayPeriodsToShow)
	out[0] = cfg.StartDate
	for i := 1; i < len(out); i++ {
		out[i] = out[i-1].AddDays(stride)
	}
	return out, nil
}

// AutoIndex returns the index of the active period: the smallest i with
// today on or before P[i], or the last index when today is past every
// boundary.
func AutoIndex(periods []core.CivilDate, today core.CivilDate) int {
	for i, p := range periods {
		if !today.After(p) {
			return i
		}
	}
	if len(periods) == 0 {
		return 0
	}
	return len(periods) - 1
}

// Window returns the half-open interval [P[i], P[i+1]) of period i. The
// last period has no successor boundary; its end is P[N-1] plus the config
// stride, so the final window is as wide as the others.
func Window(periods []core.CivilDate, i int, cfg core.PayConfig) (start, end core.CivilDate, err error) {
	if i < 0 || i >= len(periods) {
		return core.CivilDate{}, core.CivilDate{}, fmt.Errorf("%w: period index %d out of range", core.ErrMisconfiguredSchedule, i)
	}
	start = periods[i]
	if i+1 < len(periods) {
		return start, periods[i+1], nil
	}
	stride, err := cfg.StrideDays()
	if err != nil {
		return core.CivilDate{}, core.CivilDate{}, err
	}
	return start, start.AddDays(stride), nil
}

// Snap clamps a user-entered date into [P[0], P[N-1]]. Dates inside the
// range pass through unchanged. Snap applies only when persisting a due
// date the user typed; expansion never snaps.
func Snap(d core.CivilDate, periods []core.CivilDate) core.CivilDate {
	if len(periods) == 0 {
		return d
	}
	if d.Before(periods[0]) {
		return periods[0]
	}
	if last := periods[len(periods)-1]; d.After(last) {
		return last
	}
	return d
}

// Label renders one period window as "Jan 8 - Jan 21", using the inclusive
// last day of the window.
func Label(periods []core.CivilDate, i int, cfg core.PayConfig) (string, error) {
	start, end, err := Window(periods, i, cfg)
	if err != nil {
		return "", err
	}
	last := end.AddDays(-1)
	return fmt.Sprintf("%s - %s", shortDate(start), shortDate(last)), nil
}

// Labels renders every period label in order.
func Labels(periods []core.CivilDate, cfg core.PayConfig) ([]string, error) {
	out := make([]string, len(periods))
	for i := range periods {
		label, err := Label(periods, i, cfg)
		if err != nil {
			return nil, err
		}
		out[i] = label
	}
	return out, nil
}

func shortDate(d core.CivilDate) string {
	return fmt.Sprintf("%s %d", time.Month(d.Month).String()[:3], d.Day)
}
