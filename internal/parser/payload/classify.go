package payload

import (
	"regexp"

	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

// Classify builds a raw record from the integers that follow a draw date.
// The first Count values are the main numbers; the tail fills the game's
// secondary fields by range. Tail values no field claims are ignored, since
// loose page text often carries prize figures after the result.
func Classify(game models.Game, date string, ints []int) models.RawDraw {
	rules := models.RulesFor(game)
	raw := models.RawDraw{models.FieldDate: date}
	n := min(rules.Count, len(ints))
	raw[models.FieldNumbers] = append([]int(nil), ints[:n]...)
	classifyTail(rules, ints[n:], raw)
	return raw
}

// splitNumbers fills raw from a structured combination. Tail values no
// secondary field claims stay in numbers, so an overlong combination fails
// the count check instead of being truncated.
func splitNumbers(rules models.Rules, ints []int, raw models.RawDraw) {
	n := min(rules.Count, len(ints))
	nums := append([]int(nil), ints[:n]...)
	nums = append(nums, classifyTail(rules, ints[n:], raw)...)
	raw[models.FieldNumbers] = nums
}

// classifyTail assigns tail values to the secondary fields not yet present in
// raw and returns the values left unclaimed.
func classifyTail(rules models.Rules, tail []int, raw models.RawDraw) []int {
	var rest []int
	switch {
	case rules.Stars != nil:
		_, taken := raw[models.FieldEstrellas]
		var stars []int
		for _, v := range tail {
			if !taken && len(stars) < rules.StarCount && rules.Stars.Contains(v) {
				stars = append(stars, v)
				continue
			}
			rest = append(rest, v)
		}
		if len(stars) > 0 {
			raw[models.FieldEstrellas] = stars
		}
	case rules.Clave != nil:
		_, taken := raw[models.FieldClave]
		for _, v := range tail {
			if !taken && rules.Clave.Contains(v) {
				raw[models.FieldClave] = v
				taken = true
				continue
			}
			rest = append(rest, v)
		}
	default:
		rest = classifySlots(rules, tail, raw)
	}
	return rest
}

type slot struct {
	field string
	rng   *models.Range
}

// classifySlots fills complementario and reintegro. A value that fits exactly
// one free slot takes it; values fitting both are assigned in slot order only
// when they account for every slot still free.
func classifySlots(rules models.Rules, tail []int, raw models.RawDraw) []int {
	var slots []slot
	if rules.Complementario != nil {
		slots = append(slots, slot{models.FieldComplementario, rules.Complementario})
	}
	if rules.Reintegro != nil {
		slots = append(slots, slot{models.FieldReintegro, rules.Reintegro})
	}

	filled := make([]bool, len(slots))
	for i, s := range slots {
		_, filled[i] = raw[s.field]
	}

	var rest, ambiguous []int
	for _, v := range tail {
		var fits []int
		for i, s := range slots {
			if !filled[i] && s.rng.Contains(v) {
				fits = append(fits, i)
			}
		}
		switch len(fits) {
		case 0:
			rest = append(rest, v)
		case 1:
			filled[fits[0]] = true
			raw[slots[fits[0]].field] = v
		default:
			ambiguous = append(ambiguous, v)
		}
	}

	var free []int
	for i := range slots {
		if !filled[i] {
			free = append(free, i)
		}
	}
	if len(ambiguous) == 0 || len(ambiguous) != len(free) {
		return append(rest, ambiguous...)
	}
	for k, i := range free {
		raw[slots[i].field] = ambiguous[k]
	}
	return rest
}

var (
	compMarkRe = regexp.MustCompile(`(?i)C\s*\(\s*(\d{1,2})\s*\)`)
	reinMarkRe = regexp.MustCompile(`(?i)R\s*\(\s*(\d{1,2})\s*\)`)
)

// splitCombination parses strings like "03 - 11 - 22 - 29 - 34 - 41 C(12) R(5)"
// into raw. Marked values are taken first; extra trailing values then fill
// the remaining secondary fields by range.
func splitCombination(game models.Game, s string, raw models.RawDraw) {
	rules := models.RulesFor(game)

	if m := compMarkRe.FindStringSubmatch(s); m != nil {
		raw[models.FieldComplementario] = m[1]
	}
	if m := reinMarkRe.FindStringSubmatch(s); m != nil {
		// El Gordo prints its clave as the R(..) mark.
		if rules.Clave != nil {
			raw[models.FieldClave] = m[1]
		} else {
			raw[models.FieldReintegro] = m[1]
		}
	}
	s = compMarkRe.ReplaceAllString(s, " ")
	s = reinMarkRe.ReplaceAllString(s, " ")

	splitNumbers(rules, validation.IntTokens(s), raw)
}
