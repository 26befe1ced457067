package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseLifetime accepts a Go duration ("720h", "90m") or a clock-style span
// "[d.]hh:mm:ss[.fraction]" as sent by legacy clients.
func ParseLifetime(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, validationError("expiry required")
	}
	if !strings.Contains(raw, ":") {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, validationError("expiry %q is not a duration", raw)
		}
		return d, nil
	}
	d, err := parseClockSpan(raw)
	if err != nil {
		return 0, validationError("expiry %q: %v", raw, err)
	}
	return d, nil
}

const maxSpanDays = 100000

func parseClockSpan(raw string) (time.Duration, error) {
	var days int64
	clock := raw
	if head, rest, ok := strings.Cut(raw, "."); ok && !strings.Contains(head, ":") {
		n, err := strconv.ParseInt(head, 10, 64)
		if !allDigits(head, 1, 6) || err != nil || n > maxSpanDays {
			return 0, fmt.Errorf("invalid day count")
		}
		days, clock = n, rest
	}
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("want hh:mm:ss")
	}
	hours, err := strconv.ParseInt(parts[0], 10, 64)
	if !allDigits(parts[0], 1, 2) || err != nil || hours > 23 {
		return 0, fmt.Errorf("invalid hours")
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if !allDigits(parts[1], 1, 2) || err != nil || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes")
	}
	seconds, err := parseSeconds(parts[2])
	if err != nil {
		return 0, err
	}
	total := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		seconds
	return total, nil
}

// parseSeconds reads "ss[.fffffff]": one or two digits, then up to seven
// fractional digits.
func parseSeconds(raw string) (time.Duration, error) {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	if !allDigits(whole, 1, 2) || (hasFrac && !allDigits(frac, 1, 7)) {
		return 0, fmt.Errorf("invalid seconds")
	}
	secs, _ := strconv.Atoi(whole)
	if secs >= 60 {
		return 0, fmt.Errorf("invalid seconds")
	}
	d := time.Duration(secs) * time.Second
	if hasFrac {
		nanos, _ := strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
		d += time.Duration(nanos)
	}
	return d, nil
}

func allDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
