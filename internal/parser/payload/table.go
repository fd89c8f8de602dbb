package payload

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

// minLayoutRows skips small layout tables when no header row identifies the columns.
const minLayoutRows = 6

type columnRole int

const (
	roleNone columnRole = iota
	roleDate
	roleNumber
	roleCombination
	roleComplementario
	roleReintegro
	roleClave
	roleStar
)

var (
	numberHeaderRe = regexp.MustCompile(`^(N|NUM|NUMERO|BOLA)?\s*\d$`)
	starHeaderRe   = regexp.MustCompile(`^E\s*\d$`)
)

func headerRole(text string) columnRole {
	h := strings.ToUpper(strings.Trim(validation.CleanText(text), " .:#º"))
	switch {
	case h == "":
		return roleNone
	case strings.Contains(h, "FECHA"), strings.Contains(h, "DATE"), h == "SORTEO", h == "DIA":
		return roleDate
	case strings.HasPrefix(h, "COMPL"), h == "C", h == "COMP":
		return roleComplementario
	case strings.HasPrefix(h, "REINT"), h == "R", h == "REIN":
		return roleReintegro
	case strings.Contains(h, "CLAVE"):
		return roleClave
	case strings.Contains(h, "ESTRELLA"), strings.Contains(h, "STAR"), starHeaderRe.MatchString(h):
		return roleStar
	case strings.Contains(h, "COMBINACION"), strings.Contains(h, "RESULTADO"), h == "NUMEROS", h == "NUMBERS":
		return roleCombination
	case numberHeaderRe.MatchString(h), h == "NUM", h == "NUMERO", strings.Contains(h, "BOLA"):
		return roleNumber
	default:
		return roleNone
	}
}

// tableStrategy reads result tables. Columns are identified by their header
// row; tables without one are read positionally from the first date cell.
type tableStrategy struct{}

func (tableStrategy) Name() string { return "table" }

func (tableStrategy) Extract(in Input) []models.RawDraw {
	doc, ok := parseHTML(in.Body)
	if !ok {
		return nil
	}

	var out []models.RawDraw
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var rows [][]string
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, spacedText(cell))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})

		if roles, at := findHeader(rows); at >= 0 {
			for _, cells := range rows[at+1:] {
				if raw := headedRow(in.Game, roles, cells); raw != nil {
					out = append(out, raw)
				}
			}
			return
		}

		if len(rows) < minLayoutRows {
			return
		}
		for _, cells := range rows {
			if raw := positionalRow(in.Game, cells); raw != nil {
				out = append(out, raw)
			}
		}
	})
	return out
}

// findHeader looks for a header row among the first rows of a table.
// It needs a date column and at least one number column.
func findHeader(rows [][]string) ([]columnRole, int) {
	for i := 0; i < len(rows) && i < 3; i++ {
		roles := make([]columnRole, len(rows[i]))
		hasDate, hasNumbers := false, false
		for j, text := range rows[i] {
			roles[j] = headerRole(text)
			switch roles[j] {
			case roleDate:
				hasDate = true
			case roleNumber, roleCombination:
				hasNumbers = true
			}
		}
		if hasDate && hasNumbers {
			return roles, i
		}
	}
	return nil, -1
}

func headedRow(game models.Game, roles []columnRole, cells []string) models.RawDraw {
	raw := models.RawDraw{}
	var nums, stars []int
	for i, text := range cells {
		if i >= len(roles) || text == "" {
			continue
		}
		switch roles[i] {
		case roleDate:
			if _, done := raw[models.FieldDate]; !done {
				raw[models.FieldDate] = text
			}
		case roleNumber:
			nums = append(nums, validation.IntTokens(text)...)
		case roleCombination:
			sub := models.RawDraw{}
			splitCombination(game, text, sub)
			if n, ok := sub[models.FieldNumbers].([]int); ok {
				nums = append(nums, n...)
			}
			for _, f := range []string{models.FieldComplementario, models.FieldReintegro, models.FieldClave, models.FieldEstrellas} {
				if v, ok := sub[f]; ok {
					if _, set := raw[f]; !set {
						raw[f] = v
					}
				}
			}
		case roleComplementario:
			raw[models.FieldComplementario] = text
		case roleReintegro:
			raw[models.FieldReintegro] = text
		case roleClave:
			raw[models.FieldClave] = text
		case roleStar:
			stars = append(stars, validation.IntTokens(text)...)
		}
	}

	if _, ok := raw[models.FieldDate]; !ok || len(nums) == 0 {
		return nil
	}
	raw[models.FieldNumbers] = nums
	if len(stars) > 0 {
		raw[models.FieldEstrellas] = stars
	}
	return raw
}

func positionalRow(game models.Game, cells []string) models.RawDraw {
	for i, text := range cells {
		if !validation.HasDateToken(text) {
			continue
		}
		ints := validation.IntTokens(validation.StripDates(text))
		for _, rest := range cells[i+1:] {
			ints = append(ints, validation.IntTokens(rest)...)
		}
		if len(ints) == 0 {
			return nil
		}
		return Classify(game, text, ints)
	}
	return nil
}
