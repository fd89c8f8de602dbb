package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseGame(t *testing.T) {
	tests := []struct {
		input    string
		expected Game
	}{
		{"PRIMITIVA", Primitiva},
		{"La Primitiva", Primitiva},
		{"  la   primitiva ", Primitiva},
		{"LP", Primitiva},
		{"bonoloto", Bonoloto},
		{"El Gordo de la Primitiva", Gordo},
		{"GORDO", Gordo},
		{"Euromillones", Euro},
		{"EURO", Euro},
	}

	for _, tt := range tests {
		got, err := ParseGame(tt.input)
		if err != nil {
			t.Errorf("ParseGame(%q) returned error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseGame(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	if _, err := ParseGame("quiniela"); err == nil {
		t.Error("ParseGame(\"quiniela\") should fail")
	}
}

func TestParseGames_DropsRepeats(t *testing.T) {
	got, err := ParseGames([]string{"euro", "EUROMILLONES", "", "gordo"})
	if err != nil {
		t.Fatalf("ParseGames: %v", err)
	}
	if len(got) != 2 || got[0] != Euro || got[1] != Gordo {
		t.Errorf("ParseGames = %v, want [EURO GORDO]", got)
	}
}

func TestRulesFor(t *testing.T) {
	tests := []struct {
		game      Game
		count     int
		max       int
		starCount int
		hasClave  bool
		hasComp   bool
	}{
		{Primitiva, 6, 49, 0, false, true},
		{Bonoloto, 6, 49, 0, false, true},
		{Gordo, 5, 54, 0, true, false},
		{Euro, 5, 50, 2, false, false},
	}

	for _, tt := range tests {
		r := RulesFor(tt.game)
		if r.Count != tt.count || r.Numbers.Max != tt.max || r.Numbers.Min != 1 {
			t.Errorf("RulesFor(%s) = count %d range %v, want count %d max %d", tt.game, r.Count, r.Numbers, tt.count, tt.max)
		}
		if r.StarCount != tt.starCount {
			t.Errorf("RulesFor(%s).StarCount = %d, want %d", tt.game, r.StarCount, tt.starCount)
		}
		if (r.Clave != nil) != tt.hasClave {
			t.Errorf("RulesFor(%s) clave presence = %v, want %v", tt.game, r.Clave != nil, tt.hasClave)
		}
		if (r.Complementario != nil) != tt.hasComp {
			t.Errorf("RulesFor(%s) complementario presence = %v, want %v", tt.game, r.Complementario != nil, tt.hasComp)
		}
	}
}

func TestRulesFor_UnknownGamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("RulesFor should panic for an unknown game")
		}
	}()
	RulesFor(Game("QUINIELA"))
}

func TestIsDrawDay(t *testing.T) {
	sunday := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
	thursday := time.Date(2024, 9, 12, 0, 0, 0, 0, time.UTC)

	if !RulesFor(Gordo).IsDrawDay(sunday) {
		t.Error("GORDO should be drawn on Sunday")
	}
	if RulesFor(Euro).IsDrawDay(thursday) {
		t.Error("EURO should not be drawn on Thursday")
	}
	if !RulesFor(Primitiva).IsDrawDay(thursday) {
		t.Error("PRIMITIVA should be drawn on Thursday")
	}
}

func TestDrawJSON(t *testing.T) {
	comp, rein := 7, 3
	d := Draw{
		Game:           Primitiva,
		Date:           NewDate(2024, time.September, 12),
		Numbers:        []int{3, 11, 22, 29, 34, 41},
		Complementario: &comp,
		Reintegro:      &rein,
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"game":"PRIMITIVA","date":"2024-09-12","numbers":[3,11,22,29,34,41],"complementario":7,"reintegro":3}`
	if string(b) != want {
		t.Errorf("Marshal = %s, want %s", b, want)
	}

	var back Draw
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Key() != d.Key() {
		t.Errorf("Key after round trip = %v, want %v", back.Key(), d.Key())
	}
}

func TestSortDraws(t *testing.T) {
	draws := []Draw{
		{Game: Primitiva, Date: NewDate(2024, 9, 12)},
		{Game: Bonoloto, Date: NewDate(2024, 9, 12)},
		{Game: Euro, Date: NewDate(2024, 9, 10)},
	}
	SortDraws(draws)

	want := []Game{Euro, Bonoloto, Primitiva}
	for i, g := range want {
		if draws[i].Game != g {
			t.Errorf("SortDraws()[%d] = %s, want %s", i, draws[i].Game, g)
		}
	}
}

func TestWindow(t *testing.T) {
	w := RecentWindow(NewDate(2024, 9, 14), 14)
	if w.From.String() != "2024-09-01" {
		t.Errorf("RecentWindow.From = %s, want 2024-09-01", w.From)
	}
	if len(w.Days()) != 14 {
		t.Errorf("len(Days()) = %d, want 14", len(w.Days()))
	}
	if !w.Contains(NewDate(2024, 8, 31), 1) {
		t.Error("window with one day of slack should contain 2024-08-31")
	}
	if w.Contains(NewDate(2024, 8, 30), 1) {
		t.Error("window with one day of slack should not contain 2024-08-30")
	}

	y := YearWindow(2021)
	if y.Label != "2021" || y.To.String() != "2021-12-31" {
		t.Errorf("YearWindow(2021) = %+v", y)
	}
}
