package engine

import (
	"testing"
	"time"
)

// Saturday, 2026-08-29 15:00 local
var parseNow = time.Date(2026, 8, 29, 15, 0, 0, 0, time.Local)

func TestParseWhenISO(t *testing.T) {
	future := ParseWhen("2026-09-10T14:30", parseNow)
	if future.Kind != WhenExplicit {
		t.Fatalf("expected explicit, got %s", future.Kind)
	}
	want := time.Date(2026, 9, 10, 14, 30, 0, 0, time.Local)
	if !future.At.Equal(want) {
		t.Fatalf("unexpected time: %v", future.At)
	}

	// a past ISO timestamp falls back to one hour from now
	past := ParseWhen("2020-01-01T10:00", parseNow)
	if past.Kind != WhenFallback || !past.At.Equal(parseNow.Add(time.Hour)) {
		t.Fatalf("expected fallback for past ISO, got %s %v", past.Kind, past.At)
	}

	dateOnly := ParseWhen("2026-09-10", parseNow)
	if dateOnly.Kind != WhenExplicit || dateOnly.At.Hour() != 9 {
		t.Fatalf("expected date-only at 09:00, got %v", dateOnly.At)
	}
}

func TestParseWhenRelative(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"em 30 minutos", parseNow.Add(30 * time.Minute)},
		{"daqui a 2 horas", parseNow.Add(2 * time.Hour)},
		{"em 3 dias", parseNow.AddDate(0, 0, 3)},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := ParseWhen(tc.input, parseNow)
			if got.Kind != WhenRelative {
				t.Fatalf("expected relative, got %s", got.Kind)
			}
			if !got.At.Equal(tc.want) {
				t.Fatalf("unexpected time: %v (want %v)", got.At, tc.want)
			}
		})
	}
}

func TestParseWhenTomorrowAndToday(t *testing.T) {
	tomorrow := ParseWhen("amanhã às 14h", parseNow)
	if tomorrow.Kind != WhenNamedDay {
		t.Fatalf("expected named day, got %s", tomorrow.Kind)
	}
	want := time.Date(2026, 8, 30, 14, 0, 0, 0, time.Local)
	if !tomorrow.At.Equal(want) {
		t.Fatalf("unexpected time: %v", tomorrow.At)
	}

	// tomorrow without a clock defaults to 09:00
	plain := ParseWhen("amanha", parseNow)
	if plain.At.Hour() != 9 || plain.At.Day() != 30 {
		t.Fatalf("unexpected default: %v", plain.At)
	}

	// 10:00 already passed at 15:00, so "hoje às 10h" rolls to tomorrow
	rolled := ParseWhen("hoje às 10h", parseNow)
	if rolled.At.Day() != 30 || rolled.At.Hour() != 10 {
		t.Fatalf("expected roll to tomorrow 10:00, got %v", rolled.At)
	}

	tonight := ParseWhen("hoje às 18:30", parseNow)
	if tonight.At.Day() != 29 || tonight.At.Hour() != 18 || tonight.At.Minute() != 30 {
		t.Fatalf("expected today 18:30, got %v", tonight.At)
	}
}

func TestParseWhenWeekday(t *testing.T) {
	// now is Saturday; "segunda" is in two days, default 09:00
	monday := ParseWhen("segunda", parseNow)
	if monday.Kind != WhenNamedDay {
		t.Fatalf("expected named day, got %s", monday.Kind)
	}
	want := time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local)
	if !monday.At.Equal(want) {
		t.Fatalf("unexpected time: %v", monday.At)
	}

	withClock := ParseWhen("sexta às 16h30", parseNow)
	if withClock.At.Weekday() != time.Friday || withClock.At.Hour() != 16 || withClock.At.Minute() != 30 {
		t.Fatalf("unexpected time: %v", withClock.At)
	}

	// the same weekday as today at an earlier hour goes to next week
	saturday := ParseWhen("sábado às 10h", parseNow)
	if saturday.At.Day() != 5 || saturday.At.Month() != 9 {
		t.Fatalf("expected next Saturday, got %v", saturday.At)
	}
}

func TestParseWhenBareClock(t *testing.T) {
	future := ParseWhen("16:45", parseNow)
	if future.Kind != WhenClockTime {
		t.Fatalf("expected clock time, got %s", future.Kind)
	}
	if future.At.Day() != 29 || future.At.Hour() != 16 || future.At.Minute() != 45 {
		t.Fatalf("unexpected time: %v", future.At)
	}

	// 08:00 already passed, so it lands tomorrow
	passed := ParseWhen("08:00", parseNow)
	if passed.At.Day() != 30 || passed.At.Hour() != 8 {
		t.Fatalf("unexpected time: %v", passed.At)
	}
}

func TestParseWhenFallback(t *testing.T) {
	got := ParseWhen("quando der", parseNow)
	if got.Kind != WhenFallback || !got.At.Equal(parseNow.Add(time.Hour)) {
		t.Fatalf("unexpected fallback: %s %v", got.Kind, got.At)
	}
}

func TestParseWhenNeverPast(t *testing.T) {
	inputs := []string{
		"2026-09-10T14:30", "2020-01-01", "em 5 minutos", "em 1 dia",
		"em 0 dias", "daqui a 0 horas", "em 0 minutos",
		"amanhã", "hoje às 00:01", "segunda às 07h", "sábado", "08:00",
		"23:59", "qualquer coisa", "",
	}
	for _, input := range inputs {
		if got := ParseWhen(input, parseNow); !got.At.After(parseNow) {
			t.Fatalf("%q resolved to the past: %v", input, got.At)
		}
	}
}
