package domain

import (
	"testing"
	"time"
)

func interval(start, end int64) ScheduleItem {
	return ScheduleItem{
		PlannedStart: time.Unix(start, 0).UTC(),
		PlannedEnd:   time.Unix(end, 0).UTC(),
	}
}

func TestScheduleItemOverlaps(t *testing.T) {
	a := interval(100, 200)
	cases := []struct {
		name string
		b    ScheduleItem
		want bool
	}{
		{"identical", interval(100, 200), true},
		{"contained", interval(120, 180), true},
		{"partial", interval(150, 250), true},
		{"touching end", interval(200, 300), false},
		{"touching start", interval(50, 100), false},
		{"disjoint", interval(300, 400), false},
	}
	for _, c := range cases {
		if got := a.Overlaps(c.b); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
		if got := c.b.Overlaps(a); got != c.want {
			t.Fatalf("%s (reversed): got %v want %v", c.name, got, c.want)
		}
	}
}

func TestWorkstationEffectiveCapacity(t *testing.T) {
	if got := (Workstation{}).EffectiveCapacity(); got != 1 {
		t.Fatalf("default capacity: got %d", got)
	}
	if got := (Workstation{Capacity: 3}).EffectiveCapacity(); got != 3 {
		t.Fatalf("explicit capacity: got %d", got)
	}
}

func TestMaintenanceLogOpen(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	log := MaintenanceLog{StartTime: start}
	if !log.Open() {
		t.Fatalf("log without end time should be open")
	}
	if log.DurationHours() != 0 {
		t.Fatalf("open log duration should be zero")
	}
	end := start.Add(90 * time.Minute)
	log.EndTime = &end
	if log.Open() {
		t.Fatalf("log with end time should be closed")
	}
	if got := log.DurationHours(); got != 1.5 {
		t.Fatalf("duration: got %v want 1.5", got)
	}
}

func TestSPCSeriesWindow(t *testing.T) {
	series := SPCSeries{WindowSize: 3}
	for i := 0; i < 5; i++ {
		series.Points = append(series.Points, Measurement{Value: float64(i)})
	}
	window := series.Window()
	if len(window) != 3 || window[0].Value != 2 {
		t.Fatalf("window: got %v", window)
	}
	series.WindowSize = 0
	if got := series.Window(); len(got) != 5 {
		t.Fatalf("unbounded window: got %d points", len(got))
	}
}

func TestValidDisposition(t *testing.T) {
	for _, d := range []Disposition{DispositionRework, DispositionScrap, DispositionUseAsIs, DispositionReturnToSupplier} {
		if !ValidDisposition(d) {
			t.Fatalf("%s should be valid", d)
		}
	}
	if ValidDisposition("melt_down") {
		t.Fatalf("unknown disposition accepted")
	}
}
