package payload

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

var (
	// containerKeys hold the draw list in the known API shapes; they are searched first.
	containerKeys   = []string{"busqueda", "sorteos", "resultados", "buscador", "items", "draws"}
	dateKeys        = []string{"fecha_sorteo", "fechasorteo", "fecha", "date", "drawdate"}
	combinationKeys = []string{"combinacion", "combinacionnumeros", "numeros", "bolas", "numbers"}
	starListKeys    = []string{"estrellas", "stars"}
	starKeys        = [][2]string{{"estrella1", "estrella2"}, {"estrella_1", "estrella_2"}}
)

// jsonStrategy walks a decoded JSON document and maps every object holding
// both a date key and a combination key.
type jsonStrategy struct{}

func (jsonStrategy) Name() string { return "json" }

func (jsonStrategy) Extract(in Input) []models.RawDraw {
	var doc any
	if err := json.Unmarshal(in.Body, &doc); err != nil {
		return nil
	}

	var out []models.RawDraw
	walkJSON(doc, func(obj map[string]any) {
		if raw := objectToRaw(in.Game, obj); raw != nil {
			out = append(out, raw)
		}
	})
	return out
}

// walkJSON visits draw-like objects in document order. Map keys are visited
// container keys first, then alphabetically, so the order is stable.
func walkJSON(v any, visit func(map[string]any)) {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			walkJSON(item, visit)
		}
	case map[string]any:
		lower := lowerKeys(x)
		if firstKey(lower, dateKeys) != "" && firstKey(lower, combinationKeys) != "" {
			visit(lower)
			return
		}

		done := make(map[string]bool)
		for _, k := range containerKeys {
			if child, ok := lower[k]; ok {
				done[k] = true
				walkJSON(child, visit)
			}
		}
		keys := make([]string, 0, len(lower))
		for k := range lower {
			if !done[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(lower[k], visit)
		}
	}
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		if _, dup := out[lk]; !dup {
			out[lk] = v
		}
	}
	return out
}

func firstKey(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return k
		}
	}
	return ""
}

func objectToRaw(game models.Game, obj map[string]any) models.RawDraw {
	rules := models.RulesFor(game)
	raw := models.RawDraw{}

	raw[models.FieldDate] = obj[firstKey(obj, dateKeys)]

	switch comb := obj[firstKey(obj, combinationKeys)].(type) {
	case string:
		splitCombination(game, comb, raw)
	case []any:
		var ints []int
		for _, item := range comb {
			switch x := item.(type) {
			case float64:
				ints = append(ints, int(x))
			case string:
				ints = append(ints, validation.IntTokens(x)...)
			}
		}
		splitNumbers(rules, ints, raw)
	default:
		return nil
	}

	for _, f := range []string{models.FieldComplementario, models.FieldReintegro, models.FieldClave} {
		if v, ok := obj[f]; ok && v != nil {
			raw[f] = v
		}
	}
	// El Gordo answers carry the clave under "reintegro".
	if rules.Clave != nil {
		if _, ok := raw[models.FieldClave]; !ok {
			if v, ok := raw[models.FieldReintegro]; ok {
				raw[models.FieldClave] = v
			}
		}
	}

	if rules.Stars != nil {
		if k := firstKey(obj, starListKeys); k != "" {
			raw[models.FieldEstrellas] = obj[k]
		} else {
			for _, pair := range starKeys {
				var stars []any
				for _, k := range pair {
					if v, ok := obj[k]; ok && v != nil {
						stars = append(stars, v)
					}
				}
				if len(stars) > 0 {
					raw[models.FieldEstrellas] = stars
					break
				}
			}
		}
	}
	return raw
}
