package builtins

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/open-policy-agent/opa-wasm-host/internal/evalctx"
)

// --- semver ----------------------------------------------------------

type semver struct {
	major, minor, patch int
	pre                 string
}

var semverRE = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?(?:\+[0-9A-Za-z.-]+)?$`)

func parseSemver(s string) (semver, error) {
	m := semverRE.FindStringSubmatch(s)
	if m == nil {
		return semver{}, fmt.Errorf("semver: invalid version %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return semver{major: major, minor: minor, patch: patch, pre: m[4]}, nil
}

func semverCompare(a, b string) (int, error) {
	va, err := parseSemver(a)
	if err != nil {
		return 0, err
	}
	vb, err := parseSemver(b)
	if err != nil {
		return 0, err
	}
	switch {
	case va.major != vb.major:
		return cmp(va.major, vb.major), nil
	case va.minor != vb.minor:
		return cmp(va.minor, vb.minor), nil
	case va.patch != vb.patch:
		return cmp(va.patch, vb.patch), nil
	}
	// No pre-release is "greater than" any pre-release, per semver precedence.
	switch {
	case va.pre == "" && vb.pre == "":
		return 0, nil
	case va.pre == "":
		return 1, nil
	case vb.pre == "":
		return -1, nil
	default:
		return cmp(strings.Compare(va.pre, vb.pre), 0), nil
	}
}

func cmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func semverIsValid(vsn string) (bool, error) {
	_, err := parseSemver(vsn)
	return err == nil, nil
}

// --- units -------------------------------------------------------------

var decimalUnits = map[string]float64{
	"m": 1e-3,
	"K": 1e3, "k": 1e3,
	"M": 1e6,
	"G": 1e9, "g": 1e9,
	"T": 1e12, "t": 1e12,
	"P": 1e15, "p": 1e15,
	"E": 1e18, "e": 1e18,
}

var binaryUnits = map[string]float64{
	"Ki": 1 << 10, "ki": 1 << 10,
	"Mi": 1 << 20, "mi": 1 << 20,
	"Gi": 1 << 30, "gi": 1 << 30,
	"Ti": 1 << 40, "ti": 1 << 40,
	"Pi": 1 << 50, "pi": 1 << 50,
	"Ei": 1 << 60, "ei": 1 << 60,
}

var unitsRE = regexp.MustCompile(`^(-?[0-9]*\.?[0-9]+)\s*([A-Za-z]*)$`)

func unitsParse(x string) (float64, error) {
	m := unitsRE.FindStringSubmatch(strings.TrimSpace(x))
	if m == nil {
		return 0, fmt.Errorf("units.parse: invalid value %q", x)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("units.parse: %w", err)
	}
	suffix := m[2]
	if suffix == "" {
		return n, nil
	}
	if mult, ok := binaryUnits[suffix]; ok {
		return n * mult, nil
	}
	if mult, ok := decimalUnits[suffix]; ok {
		return n * mult, nil
	}
	return 0, fmt.Errorf("units.parse: unknown unit %q", suffix)
}

var byteDecimalUnits = map[string]int64{
	"": 1, "B": 1,
	"KB": 1e3, "MB": 1e6, "GB": 1e9, "TB": 1e12,
}

var byteBinaryUnits = map[string]int64{
	"KiB": 1 << 10, "Ki": 1 << 10,
	"MiB": 1 << 20, "Mi": 1 << 20,
	"GiB": 1 << 30, "Gi": 1 << 30,
	"TiB": 1 << 40, "Ti": 1 << 40,
}

var bytesRE = regexp.MustCompile(`^(-?[0-9]*\.?[0-9]+)\s*([A-Za-z]*)$`)

func unitsParseBytes(x string) (int64, error) {
	m := bytesRE.FindStringSubmatch(strings.TrimSpace(x))
	if m == nil {
		return 0, fmt.Errorf("units.parse_bytes: invalid value %q", x)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("units.parse_bytes: %w", err)
	}
	suffix := m[2]
	if mult, ok := byteBinaryUnits[suffix]; ok {
		return int64(n * float64(mult)), nil
	}
	if mult, ok := byteDecimalUnits[suffix]; ok {
		return int64(n * float64(mult)), nil
	}
	return 0, fmt.Errorf("units.parse_bytes: unknown unit %q", suffix)
}

// --- time ----------------------------------------------------------------
// Time values throughout are nanoseconds since the UNIX epoch, UTC by
// default; timezone arguments are IANA names.

func timeNowNs(_ context.Context, ec evalctx.EvaluationContext) (int64, error) {
	return ec.Now().UnixNano(), nil
}

func timeParseRFC3339Ns(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, fmt.Errorf("time.parse_rfc3339_ns: %w", err)
	}
	return t.UnixNano(), nil
}

func timeParseDurationNs(duration string) (int64, error) {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return 0, fmt.Errorf("time.parse_duration_ns: %w", err)
	}
	return int64(d), nil
}

func timeParseNs(layout, value string) (int64, error) {
	t, err := time.Parse(convertGoLayout(layout), value)
	if err != nil {
		return 0, fmt.Errorf("time.parse_ns: %w", err)
	}
	return t.UnixNano(), nil
}

// convertGoLayout is a pass-through: OPA accepts Go reference-time layouts
// directly for time.parse_ns, so no translation is needed.
func convertGoLayout(layout string) string { return layout }

func timeWeekday(ns int64) (string, error) {
	return time.Unix(0, ns).UTC().Weekday().String(), nil
}

func timeClock(ns int64) ([3]int, error) {
	t := time.Unix(0, ns).UTC()
	return [3]int{t.Hour(), t.Minute(), t.Second()}, nil
}

func timeDate(ns int64) ([3]int, error) {
	t := time.Unix(0, ns).UTC()
	return [3]int{t.Year(), int(t.Month()), t.Day()}, nil
}

func timeAddDate(ns, years, months, days int64) (int64, error) {
	t := time.Unix(0, ns).UTC().AddDate(int(years), int(months), int(days))
	return t.UnixNano(), nil
}

func timeDiff(ns1, ns2 int64) ([6]int, error) {
	t1 := time.Unix(0, ns1).UTC()
	t2 := time.Unix(0, ns2).UTC()
	d := t1.Sub(t2)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return [6]int{0, 0, 0, h, m, s}, nil
}
