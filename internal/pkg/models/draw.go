package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire format of draw dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t, ignoring its location offset.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid draw date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Draw is one validated lottery result.
type Draw struct {
	Game           Game   `json:"game"`
	Date           Date   `json:"date"`
	Numbers        []int  `json:"numbers"`
	Complementario *int   `json:"complementario,omitempty"`
	Reintegro      *int   `json:"reintegro,omitempty"`
	Clave          *int   `json:"clave,omitempty"`
	Estrellas      []int  `json:"estrellas,omitempty"`
	Source         string `json:"source,omitempty"`
}

// DrawKey identifies a draw within a dataset.
type DrawKey struct {
	Game Game
	Date string
}

func (d Draw) Key() DrawKey {
	return DrawKey{Game: d.Game, Date: d.Date.String()}
}

// SortDraws orders draws by date, then by game.
func SortDraws(draws []Draw) {
	sort.SliceStable(draws, func(i, j int) bool {
		if !draws[i].Date.Equal(draws[j].Date.Time) {
			return draws[i].Date.Before(draws[j].Date.Time)
		}
		return draws[i].Game < draws[j].Game
	})
}

// Canonical keys of a RawDraw.
const (
	FieldDate           = "date"
	FieldNumbers        = "numbers"
	FieldComplementario = "complementario"
	FieldReintegro      = "reintegro"
	FieldClave          = "clave"
	FieldEstrellas      = "estrellas"
)

// RawDraw is a loosely typed record extracted from a payload before validation.
// Values are strings, numbers or slices of either.
type RawDraw map[string]any

// Window is an inclusive date range requested from a source.
type Window struct {
	From  Date
	To    Date
	Label string
}

// YearWindow covers a whole calendar year.
func YearWindow(year int) Window {
	return Window{
		From:  NewDate(year, time.January, 1),
		To:    NewDate(year, time.December, 31),
		Label: fmt.Sprintf("%d", year),
	}
}

// RecentWindow covers the last days up to and including today.
func RecentWindow(today Date, days int) Window {
	if days < 1 {
		days = 1
	}
	from := today.AddDays(-(days - 1))
	return Window{
		From:  from,
		To:    today,
		Label: from.String() + ".." + today.String(),
	}
}

// Contains reports whether d falls inside the window widened by slack days on each side.
func (w Window) Contains(d Date, slack int) bool {
	return !d.Before(w.From.AddDays(-slack).Time) && !d.After(w.To.AddDays(slack).Time)
}

// Days lists every date of the window in ascending order.
func (w Window) Days() []Date {
	var out []Date
	for d := w.From; !d.After(w.To.Time); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
