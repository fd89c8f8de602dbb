package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B-\x1F\x7F]`)
	spacesRe       = regexp.MustCompile(`\s+`)
	intTokenRe     = regexp.MustCompile(`\d+`)
)

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
)

// CleanText trims s, drops control characters, replaces non-breaking spaces,
// folds Spanish accents and collapses runs of whitespace.
func CleanText(s string) string {
	return foldAccents(cleanText(s))
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = controlCharsRe.ReplaceAllString(s, "")
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func foldAccents(s string) string {
	return accentReplacer.Replace(s)
}

// IntTokens returns every run of digits in s as an integer, in order.
func IntTokens(s string) []int {
	raw := intTokenRe.FindAllString(s, -1)
	out := make([]int, 0, len(raw))
	for _, tok := range raw {
		if len(tok) > 9 {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// toInts coerces a raw field into integers. Strings are split on any non-digit.
func toInts(v any) []int {
	switch x := v.(type) {
	case nil:
		return nil
	case []int:
		return append([]int(nil), x...)
	case []string:
		var out []int
		for _, s := range x {
			out = append(out, IntTokens(s)...)
		}
		return out
	case []any:
		var out []int
		for _, item := range x {
			out = append(out, toInts(item)...)
		}
		return out
	case string:
		return IntTokens(x)
	default:
		if n, ok := toInt(x); ok {
			return []int{n}
		}
		return nil
	}
}

// toInt coerces a scalar raw field into one integer.
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case string:
		toks := IntTokens(x)
		if len(toks) != 1 {
			return 0, false
		}
		return toks[0], true
	case []any:
		if len(x) != 1 {
			return 0, false
		}
		return toInt(x[0])
	case []int:
		if len(x) != 1 {
			return 0, false
		}
		return x[0], true
	default:
		return 0, false
	}
}

// toText renders a raw date field as text.
func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// present reports whether a raw field carries any value at all.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case []int:
		return len(x) > 0
	case []string:
		return len(x) > 0
	default:
		return true
	}
}

// uniqueInts removes repeated values, keeping first occurrences.
func uniqueInts(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
