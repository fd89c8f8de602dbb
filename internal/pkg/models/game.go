package models

import (
	"fmt"
	"strings"
	"time"
)

// Game identifies one of the supported lottery games.
type Game string

const (
	Primitiva Game = "PRIMITIVA"
	Bonoloto  Game = "BONOLOTO"
	Gordo     Game = "GORDO"
	Euro      Game = "EURO"
)

// AllGames lists the supported games in publication order.
var AllGames = []Game{Primitiva, Bonoloto, Gordo, Euro}

// Range is an inclusive integer range.
type Range struct {
	Min int
	Max int
}

func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// Rules describes the shape of a valid draw for a game.
type Rules struct {
	Count          int
	Numbers        Range
	Complementario *Range
	Reintegro      *Range
	Clave          *Range
	Stars          *Range
	StarCount      int
	// DrawDays are the weekdays the game is normally drawn on.
	DrawDays []time.Weekday
	// FirstDraw is the date of the first draw of the current game format.
	FirstDraw Date
}

var (
	rangeComplementario = Range{Min: 1, Max: 49}
	rangeDigit          = Range{Min: 0, Max: 9}
	rangeStars          = Range{Min: 1, Max: 12}
)

var rules = map[Game]Rules{
	Primitiva: {
		Count:          6,
		Numbers:        Range{Min: 1, Max: 49},
		Complementario: &rangeComplementario,
		Reintegro:      &rangeDigit,
		DrawDays:       []time.Weekday{time.Monday, time.Thursday, time.Saturday},
		FirstDraw:      NewDate(1985, time.October, 17),
	},
	Bonoloto: {
		Count:          6,
		Numbers:        Range{Min: 1, Max: 49},
		Complementario: &rangeComplementario,
		Reintegro:      &rangeDigit,
		DrawDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		FirstDraw: NewDate(1988, time.February, 28),
	},
	Gordo: {
		Count:     5,
		Numbers:   Range{Min: 1, Max: 54},
		Clave:     &rangeDigit,
		DrawDays:  []time.Weekday{time.Sunday},
		FirstDraw: NewDate(1993, time.October, 31),
	},
	Euro: {
		Count:     5,
		Numbers:   Range{Min: 1, Max: 50},
		Stars:     &rangeStars,
		StarCount: 2,
		DrawDays:  []time.Weekday{time.Tuesday, time.Friday},
		FirstDraw: NewDate(2004, time.February, 13),
	},
}

// RulesFor returns the validation rules of a game.
// It panics for an unknown game: games are validated at the edge with ParseGame.
func RulesFor(g Game) Rules {
	r, ok := rules[g]
	if !ok {
		panic(fmt.Sprintf("models: unknown game %q", string(g)))
	}
	return r
}

// IsDrawDay reports whether the game is normally drawn on the weekday of d.
func (r Rules) IsDrawDay(d time.Time) bool {
	for _, wd := range r.DrawDays {
		if d.Weekday() == wd {
			return true
		}
	}
	return false
}

var gameAliases = map[string]Game{
	"primitiva":                Primitiva,
	"la primitiva":             Primitiva,
	"laprimitiva":              Primitiva,
	"lp":                       Primitiva,
	"bonoloto":                 Bonoloto,
	"ln":                       Bonoloto,
	"gordo":                    Gordo,
	"el gordo":                 Gordo,
	"el gordo de la primitiva": Gordo,
	"le":                       Gordo,
	"euro":                     Euro,
	"euromillones":             Euro,
	"euro millones":            Euro,
	"eu":                       Euro,
}

// ParseGame resolves a game name or one of its common aliases.
func ParseGame(s string) (Game, error) {
	key := strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if g, ok := gameAliases[key]; ok {
		return g, nil
	}
	return "", fmt.Errorf("unknown game %q", s)
}

// ParseGames resolves a list of names, keeping order and dropping repeats.
func ParseGames(names []string) ([]Game, error) {
	seen := make(map[Game]bool, len(names))
	out := make([]Game, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		g, err := ParseGame(n)
		if err != nil {
			return nil, err
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out, nil
}
