package units

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// TimeUnit names the unit a human-entered duration is expressed in.
type TimeUnit string

const (
	Seconds TimeUnit = "s"
	Minutes TimeUnit = "m"
	Hours   TimeUnit = "h"
	Days    TimeUnit = "d"
	Weeks   TimeUnit = "w"
)

var unitSeconds = map[TimeUnit]int64{
	Seconds: 1,
	Minutes: 60,
	Hours:   3600,
	Days:    86400,
	Weeks:   7 * 86400,
}

var unitAliases = map[string]TimeUnit{
	"":        Seconds,
	"s":       Seconds,
	"sec":     Seconds,
	"second":  Seconds,
	"seconds": Seconds,
	"m":       Minutes,
	"min":     Minutes,
	"minute":  Minutes,
	"minutes": Minutes,
	"h":       Hours,
	"hr":      Hours,
	"hour":    Hours,
	"hours":   Hours,
	"d":       Days,
	"day":     Days,
	"days":    Days,
	"w":       Weeks,
	"week":    Weeks,
	"weeks":   Weeks,
}

// ParseTimeUnit resolves a unit name or abbreviation.
func ParseTimeUnit(s string) (TimeUnit, error) {
	u, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown time unit %q", ErrInvalidDuration, s)
	}
	return u, nil
}

// ParseDuration converts a decimal value in the given unit into whole
// seconds. Sub-second remainders are truncated; the result must be positive.
func ParseDuration(value string, unit TimeUnit) (int64, error) {
	perUnit, ok := unitSeconds[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown time unit %q", ErrInvalidDuration, unit)
	}

	value = strings.TrimSpace(value)
	intPart, fracPart, _ := strings.Cut(value, ".")
	if (intPart == "" && fracPart == "") || !isDigits(intPart) || !isDigits(fracPart) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}

	r, ok := new(big.Rat).SetString(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, value)
	}
	r.Mul(r, new(big.Rat).SetInt64(perUnit))

	secs := new(big.Int).Quo(r.Num(), r.Denom())
	if secs.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be at least one second", ErrInvalidDuration)
	}
	if !secs.IsInt64() || secs.Int64() > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: %q is too long", ErrInvalidDuration, value)
	}
	return secs.Int64(), nil
}

// ParseDurationString parses forms like "3600", "90m", "1.5h", "2 days".
// A bare number is taken as seconds.
func ParseDurationString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	unit, err := ParseTimeUnit(s[i:])
	if err != nil {
		return 0, err
	}
	return ParseDuration(s[:i], unit)
}
