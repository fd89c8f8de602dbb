package payload

import (
	"regexp"

	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/validation"
)

var (
	smallIntRe  = regexp.MustCompile(`\b\d{1,2}\b`)
	timeOfDayRe = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)
)

// textStrategy is the last resort: it scans visible text for date tokens and
// reads the 1-2 digit numbers that follow each one up to the next date.
type textStrategy struct{}

func (textStrategy) Name() string { return "text" }

func (textStrategy) Extract(in Input) []models.RawDraw {
	text := string(in.Body)
	if in.Kind == fetch.KindHTML {
		doc, ok := parseHTML(in.Body)
		if !ok {
			return nil
		}
		text = spacedText(doc.Selection)
	}

	clean := validation.CleanText(text)
	spans := validation.DateSpans(clean)
	count := models.RulesFor(in.Game).Count

	var out []models.RawDraw
	for i, span := range spans {
		end := len(clean)
		if i+1 < len(spans) {
			end = spans[i+1].Start
		}
		segment := timeOfDayRe.ReplaceAllString(clean[span.End:end], " ")
		var ints []int
		for _, tok := range smallIntRe.FindAllString(segment, -1) {
			ints = append(ints, validation.IntTokens(tok)...)
		}
		if len(ints) < count {
			continue
		}
		out = append(out, Classify(in.Game, span.Date.String(), ints))
	}
	return out
}
