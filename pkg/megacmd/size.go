package megacmd

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	sizeRe      = regexp.MustCompile(`^([0-9][0-9.,' \x{00a0}]*)\s*([KMGTP]I?B|[KMGTP]|B)?$`)
	groupedInts = regexp.MustCompile(`^[0-9]{1,3}([.,' \x{00a0}][0-9]{3})+$`)
)

var unitFactor = map[string]float64{
	"":    1,
	"B":   1,
	"K":   1 << 10,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"M":   1 << 20,
	"MB":  1 << 20,
	"MIB": 1 << 20,
	"G":   1 << 30,
	"GB":  1 << 30,
	"GIB": 1 << 30,
	"T":   1 << 40,
	"TB":  1 << 40,
	"TIB": 1 << 40,
	"P":   1 << 50,
	"PB":  1 << 50,
	"PIB": 1 << 50,
}

// ParseSize turns a size column into bytes. It accepts plain integers,
// integers with locale thousands separators ("204,800", "204.800") and
// decimal values with a unit ("1.5 MB", "1,5MB"). A lone "-" means unknown
// and yields 0.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "-" || s == "" {
		return 0, nil
	}
	m := sizeRe.FindStringSubmatch(strings.ToUpper(s))
	if m == nil {
		return 0, fmt.Errorf("malformed size %q", s)
	}
	num, unit := strings.TrimSpace(m[1]), m[2]
	factor, ok := unitFactor[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", m[2])
	}

	if unit == "" || unit == "B" {
		if n, err := strconv.ParseInt(num, 10, 64); err == nil {
			return n, nil
		}
		if groupedInts.MatchString(num) {
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, num)
			return strconv.ParseInt(digits, 10, 64)
		}
		return 0, fmt.Errorf("malformed size %q", s)
	}

	f, err := parseDecimal(num)
	if err != nil {
		return 0, fmt.Errorf("malformed size %q: %w", s, err)
	}
	bytes := math.Round(f * factor)
	if math.IsNaN(bytes) || bytes < 0 || bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(bytes), nil
}

// parseDecimal accepts either '.' or ',' as the decimal mark. When both are
// present the rightmost one is the decimal mark.
func parseDecimal(s string) (float64, error) {
	s = strings.NewReplacer(" ", "", "'", "", "\u00a0", "").Replace(s)
	dot, comma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case dot >= 0 && comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0, fmt.Errorf("ambiguous number %q", s)
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
