package builtins

import (
	"fmt"
	"regexp"
	"strings"

	glob "github.com/gobwas/glob"
	intersect "github.com/yashtewari/glob-intersection"
)

var globSpecials = map[rune]bool{
	'*': true, '?': true, '\\': true, '[': true, ']': true, '{': true, '}': true,
}

// globQuoteMeta escapes the glob metacharacters * ? \ [ ] { } in pattern.
// Escaping is not idempotent: running it twice escapes each special again,
// including the backslashes the first pass added, as invariant 7 requires.
func globQuoteMeta(pattern string) (string, error) {
	needsEscape := false
	for _, c := range pattern {
		if globSpecials[c] {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return pattern, nil
	}

	var out strings.Builder
	out.Grow(len(pattern) * 2)
	for _, c := range pattern {
		if globSpecials[c] {
			out.WriteByte('\\')
		}
		out.WriteRune(c)
	}
	return out.String(), nil
}

func regexFindN(pattern, value string, n int64) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex.find_n: %w", err)
	}
	limit := int(n)
	if n < 0 {
		limit = -1
	}
	return re.FindAllString(value, limit), nil
}

func regexSplit(pattern, value string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex.split: %w", err)
	}
	return re.Split(value, -1), nil
}

func regexMatch(pattern, value string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("regex.match: %w", err)
	}
	return re.MatchString(value), nil
}

func regexReplace(pattern, value, replacement string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("regex.replace: %w", err)
	}
	return re.ReplaceAllString(value, replacement), nil
}

func regexIsValid(pattern string) (bool, error) {
	_, err := regexp.Compile(pattern)
	return err == nil, nil
}

// regexGlobsMatch reports whether the intersection of two glob-style
// expressions (limited symbol set: . * + [ - ] \) matches a non-empty set
// of non-empty strings.
func regexGlobsMatch(glob1, glob2 string) (bool, error) {
	if _, err := glob.Compile(glob1); err != nil {
		return false, fmt.Errorf("regex.globs_match: %w", err)
	}
	if _, err := glob.Compile(glob2); err != nil {
		return false, fmt.Errorf("regex.globs_match: %w", err)
	}
	return intersect.NonEmpty(glob1, glob2)
}

// regexTemplateMatch matches value against pattern, where pattern may
// contain glob-like placeholders delimited by delimiterStart/delimiterEnd
// (e.g. "{*}").
func regexTemplateMatch(pattern, value, delimiterStart, delimiterEnd string) (bool, error) {
	escaped := regexp.QuoteMeta(pattern)
	escapedStart := regexp.QuoteMeta(delimiterStart)
	escapedEnd := regexp.QuoteMeta(delimiterEnd)

	placeholder := escapedStart + `[^` + escapedEnd + `]*` + escapedEnd
	translated := strings.NewReplacer(escapedStart+".*"+escapedEnd, placeholder).Replace(escaped)
	translated = strings.ReplaceAll(translated, escapedStart+`\*`+escapedEnd, `.*`)

	re, err := regexp.Compile("^" + translated + "$")
	if err != nil {
		return false, fmt.Errorf("regex.template_match: %w", err)
	}
	return re.MatchString(value), nil
}
