package payload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

const (
	ballSelector = "[class*='bola'], [class*='ball'], [class*='numero'], [data-ball]"
	starSelector = "[class*='estrella'], [class*='star']"
)

// Classes marking balls that are not part of the main combination.
var secondaryClassHints = []string{"estrella", "star", "complementario", "reintegro", "clave", "joker"}

var starsLabelRe = regexp.MustCompile(`(?i)estrellas?\D{0,40}?(\d{1,2})\D{1,20}?(\d{1,2})\b`)

// labelsStrategy reads single-result pages that render each ball as its own
// element and label the secondary numbers ("Complementario", "Reintegro",
// "Clave", "Estrellas").
type labelsStrategy struct{}

func (labelsStrategy) Name() string { return "labels" }

func (labelsStrategy) Extract(in Input) []models.RawDraw {
	doc, ok := parseHTML(in.Body)
	if !ok {
		return nil
	}
	rules := models.RulesFor(in.Game)
	text := spacedText(doc.Selection)

	var date string
	switch {
	case in.Window.From.Equal(in.Window.To.Time) && !in.Window.From.IsZero():
		date = in.Window.From.String()
	default:
		dates := validation.FindDates(text)
		if len(dates) == 0 {
			return nil
		}
		date = dates[0].String()
	}

	var main []int
	doc.Find(ballSelector).Each(func(_ int, s *goquery.Selection) {
		if len(main) >= rules.Count || hasSecondaryClass(s) {
			return
		}
		if v, ok := singleSmallInt(spacedText(s)); ok {
			main = append(main, v)
		}
	})
	if len(main) == 0 {
		return nil
	}

	raw := models.RawDraw{
		models.FieldDate:    date,
		models.FieldNumbers: main,
	}

	if rules.Complementario != nil {
		if v, ok := classedInt(doc, "complementario"); ok {
			raw[models.FieldComplementario] = v
		} else if v, ok := afterLabel(text, "complementario", 40); ok {
			raw[models.FieldComplementario] = v
		}
	}
	if rules.Reintegro != nil {
		if v, ok := classedInt(doc, "reintegro"); ok {
			raw[models.FieldReintegro] = v
		} else if v, ok := afterLabel(text, "reintegro", 40); ok {
			raw[models.FieldReintegro] = v
		}
	}
	if rules.Clave != nil {
		if v, ok := classedInt(doc, "clave"); ok {
			raw[models.FieldClave] = v
		} else if v, ok := afterLabel(text, "clave", 20); ok {
			raw[models.FieldClave] = v
		}
	}
	if rules.Stars != nil {
		if stars := pickStars(doc, text, rules.StarCount); len(stars) > 0 {
			raw[models.FieldEstrellas] = stars
		}
	}
	return []models.RawDraw{raw}
}

func hasSecondaryClass(s *goquery.Selection) bool {
	class := strings.ToLower(s.AttrOr("class", ""))
	for _, hint := range secondaryClassHints {
		if strings.Contains(class, hint) {
			return true
		}
	}
	return false
}

func classedInt(doc *goquery.Document, class string) (int, bool) {
	var (
		out   int
		found bool
	)
	doc.Find(fmt.Sprintf("[class*='%s']", class)).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out, found = singleSmallInt(spacedText(s))
		return !found
	})
	return out, found
}

// afterLabel returns the first 1-2 digit number within maxGap non-digit
// characters after label.
func afterLabel(text, label string, maxGap int) (int, bool) {
	re := regexp.MustCompile(fmt.Sprintf(`(?i)%s\D{0,%d}?(\d{1,2})\b`, regexp.QuoteMeta(label), maxGap))
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	ints := validation.IntTokens(m[1])
	return ints[0], true
}

func pickStars(doc *goquery.Document, text string, expect int) []int {
	var stars []int
	doc.Find(starSelector).Each(func(_ int, s *goquery.Selection) {
		if len(stars) >= expect {
			return
		}
		if v, ok := singleSmallInt(spacedText(s)); ok {
			stars = append(stars, v)
		}
	})
	if len(stars) >= expect {
		return stars
	}
	if m := starsLabelRe.FindStringSubmatch(text); m != nil {
		return append(validation.IntTokens(m[1]), validation.IntTokens(m[2])...)
	}
	return stars
}
