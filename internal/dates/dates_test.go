package dates

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekendsOfYear(t *testing.T) {
	weekends := WeekendsOfYear(2026)

	if len(weekends) != 104 {
		t.Fatalf("expected 104 weekend days in 2026, got %d", len(weekends))
	}
	if !weekends[0].Equal(date(2026, time.January, 3)) {
		t.Errorf("first weekend day: expected 2026-01-03, got %s", weekends[0])
	}
	if last := weekends[len(weekends)-1]; !last.Equal(date(2026, time.December, 27)) {
		t.Errorf("last weekend day: expected 2026-12-27, got %s", last)
	}

	for i, d := range weekends {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			t.Errorf("weekends[%d] = %s is a %s", i, d, wd)
		}
		if d.Year() != 2026 {
			t.Errorf("weekends[%d] = %s outside year", i, d)
		}
		if i > 0 && !weekends[i-1].Before(d) {
			t.Errorf("weekends not in chronological order at %d", i)
		}
	}
}

func TestAdmissionWindow(t *testing.T) {
	// Wednesday 2026-03-04; +14d = Wednesday 2026-03-18, rolls to Sunday 2026-03-22.
	now := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)
	start, end := AdmissionWindow(now)

	if !start.Equal(date(2026, time.March, 4)) {
		t.Errorf("start: expected 2026-03-04, got %s", start)
	}
	if !end.Equal(date(2026, time.March, 22)) {
		t.Errorf("end: expected 2026-03-22, got %s", end)
	}
}

func TestAdmissionWindowAlreadySunday(t *testing.T) {
	// Sunday 2026-03-01; +14d = Sunday 2026-03-15, no further roll.
	now := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	_, end := AdmissionWindow(now)

	if !end.Equal(date(2026, time.March, 15)) {
		t.Errorf("end: expected 2026-03-15, got %s", end)
	}
}

func TestWithinAdmissionWindow(t *testing.T) {
	now := time.Date(2026, time.March, 4, 10, 30, 0, 0, time.UTC)

	cases := []struct {
		name      string
		candidate time.Time
		want      bool
	}{
		{"today", date(2026, time.March, 4), true},
		{"yesterday", date(2026, time.March, 3), false},
		{"third sunday", date(2026, time.March, 22), true},
		{"one past third sunday", date(2026, time.March, 23), false},
		{"mid window", date(2026, time.March, 14), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinAdmissionWindow(tc.candidate, now); got != tc.want {
				t.Errorf("WithinAdmissionWindow(%s) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}
}

func TestCutoffFor(t *testing.T) {
	// Monday 2026-03-02 rolls to Friday 2026-03-06 18:00.
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	got := CutoffFor(now)
	want := time.Date(2026, time.March, 6, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("CutoffFor = %s, want %s", got, want)
	}

	// Friday stays on the same Friday even when past 18:00.
	now = time.Date(2026, time.March, 6, 19, 0, 0, 0, time.UTC)
	if got := CutoffFor(now); !got.Equal(want) {
		t.Errorf("CutoffFor on Friday evening = %s, want %s", got, want)
	}
}

func TestBeforeCutoff(t *testing.T) {
	friday := date(2026, time.March, 6) // a Friday
	monday := date(2026, time.March, 9)

	cases := []struct {
		name   string
		now    time.Time
		pickup time.Time
		want   bool
	}{
		{
			"friday 17:59 for following monday",
			friday.Add(17*time.Hour + 59*time.Minute), monday, true,
		},
		{
			"friday 18:01 for following monday",
			friday.Add(18*time.Hour + 1*time.Minute), monday, false,
		},
		{
			"friday 18:00 exactly still admissible",
			friday.Add(18 * time.Hour), monday, true,
		},
		{
			"thursday for the coming saturday",
			date(2026, time.March, 5).Add(12 * time.Hour), date(2026, time.March, 7), true,
		},
		{
			"saturday for the next day",
			date(2026, time.March, 7).Add(9 * time.Hour), date(2026, time.March, 8), false,
		},
		{
			"pickup date in the past",
			friday.Add(10 * time.Hour), date(2026, time.February, 28), false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BeforeCutoff(tc.now, tc.pickup); got != tc.want {
				t.Errorf("BeforeCutoff(%s, %s) = %v, want %v", tc.now, tc.pickup, got, tc.want)
			}
		})
	}
}
