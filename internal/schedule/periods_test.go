package schedule

import (
	"errors"
	"testing"

	"billtrack/internal/core"
)

func date(y, m, d int) core.CivilDate {
	return core.CivilDate{Year: y, Month: m, Day: d}
}

func biweeklyConfig(periods int) core.PayConfig {
	return core.PayConfig{
		StartDate:        date(2025, 1, 8),
		Frequency:        core.FrequencyBiWeekly,
		PayPeriodsToShow: periods,
	}
}

func TestBoundaries(t *testing.T) {
	got, err := Boundaries(biweeklyConfig(3))
	if err != nil {
		t.Fatalf("Boundaries() error = %v", err)
	}
	want := []core.CivilDate{date(2025, 1, 8), date(2025, 1, 22), date(2025, 2, 5)}
	if len(got) != len(want) {
		t.Fatalf("Boundaries() returned %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Boundaries()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBoundariesMonthlyStrideIsFixedThirtyDays(t *testing.T) {
	cfg := core.PayConfig{
		StartDate:        date(2025, 1, 1),
		Frequency:        core.FrequencyMonthly,
		PayPeriodsToShow: 3,
	}
	got, err := Boundaries(cfg)
	if err != nil {
		t.Fatalf("Boundaries() error = %v", err)
	}
	// monthly paychecks stride exactly 30 days, they do not walk
	// calendar months like a Monthly recurrence does
	want := []core.CivilDate{date(2025, 1, 1), date(2025, 1, 31), date(2025, 3, 2)}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Boundaries()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestBoundariesCustomFrequency(t *testing.T) {
	cfg := core.PayConfig{
		StartDate:        date(2025, 3, 1),
		Frequency:        core.FrequencyCustom,
		CustomDays:       10,
		PayPeriodsToShow: 2,
	}
	got, err := Boundaries(cfg)
	if err != nil {
		t.Fatalf("Boundaries() error = %v", err)
	}
	if got[1] != date(2025, 3, 11) {
		t.Errorf("Boundaries()[1] = %s, want 2025-03-11", got[1])
	}
}

func TestBoundariesMisconfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.PayConfig
	}{
		{
			name: "zero periods",
			cfg: core.PayConfig{
				StartDate:        date(2025, 1, 8),
				Frequency:        core.FrequencyBiWeekly,
				PayPeriodsToShow: 0,
			},
		},
		{
			name: "custom without customDays",
			cfg: core.PayConfig{
				StartDate:        date(2025, 1, 8),
				Frequency:        core.FrequencyCustom,
				PayPeriodsToShow: 3,
			},
		},
		{
			name: "missing start date",
			cfg: core.PayConfig{
				Frequency:        core.FrequencyBiWeekly,
				PayPeriodsToShow: 3,
			},
		},
		{
			name: "unknown frequency",
			cfg: core.PayConfig{
				StartDate:        date(2025, 1, 8),
				Frequency:        "fortnightly",
				PayPeriodsToShow: 3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Boundaries(tt.cfg)
			if !errors.Is(err, core.ErrMisconfiguredSchedule) {
				t.Errorf("Boundaries() error = %v, want ErrMisconfiguredSchedule", err)
			}
		})
	}
}

func TestAutoIndex(t *testing.T) {
	periods := []core.CivilDate{date(2025, 1, 8), date(2025, 1, 22), date(2025, 2, 5)}

	tests := []struct {
		name  string
		today core.CivilDate
		want  int
	}{
		{"before first boundary", date(2025, 1, 1), 0},
		{"on first boundary", date(2025, 1, 8), 0},
		{"inside first window", date(2025, 1, 15), 1},
		{"on second boundary", date(2025, 1, 22), 1},
		{"inside second window", date(2025, 1, 30), 2},
		{"past every boundary", date(2025, 3, 1), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AutoIndex(periods, tt.today); got != tt.want {
				t.Errorf("AutoIndex(%s) = %d, want %d", tt.today, got, tt.want)
			}
		})
	}
}

func TestAutoIndexEmpty(t *testing.T) {
	if got := AutoIndex(nil, date(2025, 1, 1)); got != 0 {
		t.Errorf("AutoIndex(nil) = %d, want 0", got)
	}
}

func TestWindow(t *testing.T) {
	cfg := biweeklyConfig(3)
	periods, err := Boundaries(cfg)
	if err != nil {
		t.Fatalf("Boundaries() error = %v", err)
	}

	tests := []struct {
		name      string
		index     int
		wantStart core.CivilDate
		wantEnd   core.CivilDate
	}{
		{"first", 0, date(2025, 1, 8), date(2025, 1, 22)},
		{"middle", 1, date(2025, 1, 22), date(2025, 2, 5)},
		{"last extends one stride", 2, date(2025, 2, 5), date(2025, 2, 19)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Window(periods, tt.index, cfg)
			if err != nil {
				t.Fatalf("Window(%d) error = %v", tt.index, err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Window(%d) = [%s, %s), want [%s, %s)", tt.index, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestWindowOutOfRange(t *testing.T) {
	cfg := biweeklyConfig(3)
	periods, _ := Boundaries(cfg)
	for _, idx := range []int{-1, 3} {
		if _, _, err := Window(periods, idx, cfg); !errors.Is(err, core.ErrMisconfiguredSchedule) {
			t.Errorf("Window(%d) error = %v, want ErrMisconfiguredSchedule", idx, err)
		}
	}
}

func TestLabel(t *testing.T) {
	cfg := biweeklyConfig(3)
	periods, _ := Boundaries(cfg)

	tests := []struct {
		index int
		want  string
	}{
		{0, "Jan 8 - Jan 21"},
		{1, "Jan 22 - Feb 4"},
		{2, "Feb 5 - Feb 18"},
	}

	for _, tt := range tests {
		got, err := Label(periods, tt.index, cfg)
		if err != nil {
			t.Fatalf("Label(%d) error = %v", tt.index, err)
		}
		if got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}

func TestLabels(t *testing.T) {
	cfg := biweeklyConfig(3)
	periods, _ := Boundaries(cfg)
	got, err := Labels(periods, cfg)
	if err != nil {
		t.Fatalf("Labels() error = %v", err)
	}
	if len(got) != 3 || got[0] != "Jan 8 - Jan 21" {
		t.Errorf("Labels() = %v", got)
	}
}

func TestSnap(t *testing.T) {
	periods := []core.CivilDate{date(2025, 1, 8), date(2025, 1, 22), date(2025, 2, 5)}

	tests := []struct {
		name string
		in   core.CivilDate
		want core.CivilDate
	}{
		{"before plan clamps to first", date(2024, 12, 25), date(2025, 1, 8)},
		{"after plan clamps to last", date(2025, 6, 1), date(2025, 2, 5)},
		{"on first boundary unchanged", date(2025, 1, 8), date(2025, 1, 8)},
		{"inside plan unchanged", date(2025, 1, 30), date(2025, 1, 30)},
		{"on last boundary unchanged", date(2025, 2, 5), date(2025, 2, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snap(tt.in, periods); got != tt.want {
				t.Errorf("Snap(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestSnapNoPeriods(t *testing.T) {
	in := date(2025, 4, 1)
	if got := Snap(in, nil); got != in {
		t.Errorf("Snap with no periods = %s, want input unchanged", got)
	}
}
