package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// Rejection reasons. Normalize wraps one of these so callers can use errors.Is.
var (
	ErrNoDate          = errors.New("no date")
	ErrAmbiguousDate   = errors.New("ambiguous date")
	ErrImplausibleDate = errors.New("implausible date")
	ErrNumberCount     = errors.New("wrong number count")
	ErrNumberRange     = errors.New("number out of range")
	ErrStars           = errors.New("invalid stars")
)

// DefaultEpochFloor is the earliest draw date accepted unless configured otherwise.
var DefaultEpochFloor = models.NewDate(1985, time.January, 1)

// Normalizer turns raw extracted records into canonical draws.
// It is pure apart from reading the clock.
type Normalizer struct {
	floor models.Date
	now   func() time.Time
}

// NewNormalizer creates a normalizer accepting dates from floor to tomorrow.
// A zero floor falls back to DefaultEpochFloor.
func NewNormalizer(floor models.Date) *Normalizer {
	if floor.IsZero() {
		floor = DefaultEpochFloor
	}
	return &Normalizer{floor: floor, now: time.Now}
}

// WithClock returns a copy of n reading the current time from now.
func (n *Normalizer) WithClock(now func() time.Time) *Normalizer {
	cp := *n
	cp.now = now
	return &cp
}

// Floor returns the earliest date n accepts for game g.
func (n *Normalizer) Floor(g models.Game) models.Date {
	first := models.RulesFor(g).FirstDraw
	if first.After(n.floor.Time) {
		return first
	}
	return n.floor
}

// Normalize validates one raw record. On rejection it returns an error wrapping
// one of the Err* reasons.
func (n *Normalizer) Normalize(game models.Game, raw models.RawDraw, source string) (*models.Draw, error) {
	rules := models.RulesFor(game)

	date, err := n.normalizeDate(game, raw[models.FieldDate])
	if err != nil {
		return nil, err
	}

	numbers, err := normalizeNumbers(rules, raw[models.FieldNumbers])
	if err != nil {
		return nil, err
	}

	draw := &models.Draw{
		Game:    game,
		Date:    date,
		Numbers: numbers,
		Source:  source,
	}

	if rules.Complementario != nil {
		if v, ok := optionalInt(raw[models.FieldComplementario], *rules.Complementario); ok && !containsInt(numbers, v) {
			draw.Complementario = &v
		}
	}
	if rules.Reintegro != nil {
		if v, ok := optionalInt(raw[models.FieldReintegro], *rules.Reintegro); ok {
			draw.Reintegro = &v
		}
	}
	if rules.Clave != nil {
		if v, ok := optionalInt(raw[models.FieldClave], *rules.Clave); ok {
			draw.Clave = &v
		}
	}
	if rules.Stars != nil && present(raw[models.FieldEstrellas]) {
		stars, err := normalizeStars(rules, raw[models.FieldEstrellas])
		if err != nil {
			return nil, err
		}
		draw.Estrellas = stars
	}

	return draw, nil
}

// NormalizeAll validates every record and returns the accepted draws in input order
// together with the number of rejected records.
func (n *Normalizer) NormalizeAll(game models.Game, rows []models.RawDraw, source string) ([]models.Draw, int) {
	out := make([]models.Draw, 0, len(rows))
	rejected := 0
	for i, raw := range rows {
		d, err := n.Normalize(game, raw, source)
		if err != nil {
			rejected++
			slog.Debug("Skipping row", "game", game, "source", source, "row", i, "reason", err)
			continue
		}
		out = append(out, *d)
	}
	return out, rejected
}

func (n *Normalizer) normalizeDate(game models.Game, v any) (models.Date, error) {
	text := toText(v)
	dates := FindDates(text)
	switch {
	case len(dates) == 0:
		return models.Date{}, fmt.Errorf("%w: %q", ErrNoDate, text)
	case len(dates) > 1:
		return models.Date{}, fmt.Errorf("%w: %q", ErrAmbiguousDate, text)
	}

	date := dates[0]
	floor := n.Floor(game)
	ceiling := models.DateOf(n.now().UTC()).AddDays(1)
	if date.Before(floor.Time) || date.After(ceiling.Time) {
		return models.Date{}, fmt.Errorf("%w: %s not in [%s, %s]", ErrImplausibleDate, date, floor, ceiling)
	}
	return date, nil
}

func normalizeNumbers(rules models.Rules, v any) ([]int, error) {
	nums := uniqueInts(toInts(v))
	if len(nums) != rules.Count {
		return nil, fmt.Errorf("%w: got %d unique, want %d", ErrNumberCount, len(nums), rules.Count)
	}
	for _, x := range nums {
		if !rules.Numbers.Contains(x) {
			return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrNumberRange, x, rules.Numbers.Min, rules.Numbers.Max)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

func normalizeStars(rules models.Rules, v any) ([]int, error) {
	stars := toInts(v)
	if len(stars) != rules.StarCount || len(uniqueInts(stars)) != rules.StarCount {
		return nil, fmt.Errorf("%w: got %v, want %d distinct", ErrStars, stars, rules.StarCount)
	}
	for _, s := range stars {
		if !rules.Stars.Contains(s) {
			return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrStars, s, rules.Stars.Min, rules.Stars.Max)
		}
	}
	sort.Ints(stars)
	return stars, nil
}

// optionalInt accepts a secondary number only when it is present and in range.
func optionalInt(v any, r models.Range) (int, bool) {
	if !present(v) {
		return 0, false
	}
	x, ok := toInt(v)
	if !ok || !r.Contains(x) {
		return 0, false
	}
	return x, true
}

func containsInt(vals []int, v int) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
