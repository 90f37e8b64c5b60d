package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WhenKind tags which pattern of the cascade resolved a date phrase.
type WhenKind string

const (
	WhenExplicit  WhenKind = "explicit"
	WhenRelative  WhenKind = "relative"
	WhenNamedDay  WhenKind = "named_day"
	WhenClockTime WhenKind = "clock_time"
	WhenFallback  WhenKind = "fallback"
)

// When is the resolved schedule instant plus the pattern that produced
// it. At is always strictly after the reference time.
type When struct {
	At   time.Time
	Kind WhenKind
}

var (
	relativeRe = regexp.MustCompile(`(?:\bem\b|\bdaqui\s+a\b)\s+(\d+)\s*(minutos?|min\b|horas?|\bh\b|dias?)`)
	clockRe    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2})|h(\d{2})?)\b`)
	bareHourRe = regexp.MustCompile(`(?:às|as)\s+(\d{1,2})\b`)
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var weekdays = map[string]time.Weekday{
	"domingo": time.Sunday,
	"segunda": time.Monday,
	"terça":   time.Tuesday,
	"terca":   time.Tuesday,
	"quarta":  time.Wednesday,
	"quinta":  time.Thursday,
	"sexta":   time.Friday,
	"sábado":  time.Saturday,
	"sabado":  time.Saturday,
}

// ParseWhen resolves a natural-language Portuguese date phrase against
// now. The cascade order is fixed: ISO-8601, "em N minutos/horas/dias",
// "amanhã", "hoje", weekday names, bare clock time, then one hour from
// now. Past instants are never returned.
func ParseWhen(input string, now time.Time) When {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" {
		return fallback(now)
	}

	// ISO-8601, accepted only when still in the future
	for _, layout := range isoLayouts {
		if at, err := time.ParseInLocation(layout, strings.TrimSpace(input), now.Location()); err == nil {
			if layout == "2006-01-02" {
				at = time.Date(at.Year(), at.Month(), at.Day(), 9, 0, 0, 0, now.Location())
			}
			if at.After(now) {
				return When{At: at, Kind: WhenExplicit}
			}
			return fallback(now)
		}
	}

	if m := relativeRe.FindStringSubmatch(text); m != nil {
		qty, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch {
		case strings.HasPrefix(m[2], "min"):
			d = time.Duration(qty) * time.Minute
		case strings.HasPrefix(m[2], "h"):
			d = time.Duration(qty) * time.Hour
		default:
			if qty <= 0 {
				return fallback(now)
			}
			return When{At: now.AddDate(0, 0, qty), Kind: WhenRelative}
		}
		if d <= 0 {
			return fallback(now)
		}
		return When{At: now.Add(d), Kind: WhenRelative}
	}

	if strings.Contains(text, "amanhã") || strings.Contains(text, "amanha") {
		hour, min := clockOrDefault(text, 9, 0)
		at := dayAt(now.AddDate(0, 0, 1), hour, min)
		return When{At: ensureFuture(at, now, 1), Kind: WhenNamedDay}
	}

	if strings.Contains(text, "hoje") {
		hour, min := clockOrDefault(text, 9, 0)
		at := dayAt(now, hour, min)
		// rolls to tomorrow when the time already passed today
		return When{At: ensureFuture(at, now, 1), Kind: WhenNamedDay}
	}

	for name, weekday := range weekdays {
		if !strings.Contains(text, name) {
			continue
		}
		hour, min := clockOrDefault(text, 9, 0)
		days := (int(weekday) - int(now.Weekday()) + 7) % 7
		at := dayAt(now.AddDate(0, 0, days), hour, min)
		return When{At: ensureFuture(at, now, 7), Kind: WhenNamedDay}
	}

	if hour, min, ok := findClock(text); ok {
		at := dayAt(now, hour, min)
		return When{At: ensureFuture(at, now, 1), Kind: WhenClockTime}
	}

	return fallback(now)
}

func fallback(now time.Time) When {
	return When{At: now.Add(time.Hour), Kind: WhenFallback}
}

func dayAt(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

// ensureFuture pushes at forward in stepDays increments until it is
// strictly after now.
func ensureFuture(at, now time.Time, stepDays int) time.Time {
	for !at.After(now) {
		at = at.AddDate(0, 0, stepDays)
	}
	return at
}

func clockOrDefault(text string, defHour, defMin int) (int, int) {
	if hour, min, ok := findClock(text); ok {
		return hour, min
	}
	return defHour, defMin
}

// findClock recognizes "14:30", "14h", "14h30" and "às 14".
func findClock(text string) (int, int, bool) {
	if m := clockRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		} else if m[3] != "" {
			min, _ = strconv.Atoi(m[3])
		}
		if hour < 24 && min < 60 {
			return hour, min, true
		}
	}
	if m := bareHourRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 24 {
			return hour, 0, true
		}
	}
	return 0, 0, false
}
