package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/export"
	"github.com/Vodeneev/loterias/internal/pkg/models"
)

var fixedNow = time.Date(2024, time.October, 1, 5, 0, 0, 0, time.UTC)

func mkDraw(game models.Game, date, source string) models.Draw {
	d, err := models.ParseDate(date)
	if err != nil {
		panic(err)
	}
	n := models.RulesFor(game).Count
	numbers := make([]int, n)
	for i := range numbers {
		numbers[i] = i + 1
	}
	return models.Draw{Game: game, Date: d, Numbers: numbers, Source: source}
}

// stubSource answers per game and window label.
type stubSource struct {
	mu      sync.Mutex
	answers map[string]models.WindowResult
	calls   []string
}

func (s *stubSource) Resolve(ctx context.Context, game models.Game, window models.Window) models.WindowResult {
	key := string(game) + " " + window.Label
	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.mu.Unlock()

	if r, ok := s.answers[key]; ok {
		r.Game = game
		r.Window = window
		return r
	}
	return models.WindowResult{Game: game, Window: window,
		Err: errors.New(key + ": no_data (3 variants)")}
}

func readSnapshot(t *testing.T, path string) export.Snapshot {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var s export.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return s
}

func TestBuildSnapshots_Historic(t *testing.T) {
	src := &stubSource{answers: map[string]models.WindowResult{
		"PRIMITIVA 2023": {Draws: []models.Draw{
			mkDraw(models.Primitiva, "2023-12-30", "a"),
			mkDraw(models.Primitiva, "2024-01-01", "a"),
		}},
		"PRIMITIVA 2024": {Draws: []models.Draw{
			mkDraw(models.Primitiva, "2024-01-01", "b"),
			mkDraw(models.Primitiva, "2024-09-14", "b"),
		}},
		"BONOLOTO 2024": {Draws: []models.Draw{
			mkDraw(models.Bonoloto, "2024-09-13", "c"),
		}},
	}}
	dir := t.TempDir()
	games := []models.Game{models.Primitiva, models.Bonoloto, models.Gordo}

	summary, err := BuildSnapshots(context.Background(),
		Deps{Source: src, RunID: "run-1", Now: func() time.Time { return fixedNow }},
		games, Spec{Mode: ModeHistoric, StartYear: 2023, EndYear: 2024}, dir)
	if err != nil {
		t.Fatalf("BuildSnapshots error: %v", err)
	}

	wantCounts := map[models.Game]int{models.Primitiva: 3, models.Bonoloto: 1}
	if !reflect.DeepEqual(summary.CountsByGame, wantCounts) {
		t.Errorf("CountsByGame = %v, want %v", summary.CountsByGame, wantCounts)
	}
	wantErrors := []string{
		"BONOLOTO 2023: no_data (3 variants)",
		"GORDO 2023: no_data (3 variants)",
		"GORDO 2024: no_data (3 variants)",
		"GORDO: too_few_valid_draws (0)",
	}
	if !reflect.DeepEqual(summary.Errors, wantErrors) {
		t.Errorf("Errors = %v, want %v", summary.Errors, wantErrors)
	}

	historic := readSnapshot(t, filepath.Join(dir, "lae_historico.json"))
	var keys []string
	for _, d := range historic.Results {
		keys = append(keys, string(d.Game)+" "+d.Date.String()+" "+d.Source)
	}
	wantKeys := []string{
		"PRIMITIVA 2023-12-30 a",
		"PRIMITIVA 2024-01-01 a",
		"BONOLOTO 2024-09-13 c",
		"PRIMITIVA 2024-09-14 b",
	}
	if !reflect.DeepEqual(keys, wantKeys) {
		t.Errorf("historic = %v, want %v", keys, wantKeys)
	}
	if historic.GeneratedAt != "2024-10-01T05:00:00Z" {
		t.Errorf("GeneratedAt = %q", historic.GeneratedAt)
	}

	perGame := readSnapshot(t, filepath.Join(dir, "BONOLOTO.json"))
	if len(perGame.Results) != 1 || !reflect.DeepEqual(perGame.Errors, []string{"BONOLOTO 2023: no_data (3 variants)"}) {
		t.Errorf("BONOLOTO.json = %+v", perGame)
	}

	latest := readSnapshot(t, filepath.Join(dir, "lae_latest.json"))
	if len(latest.Results) != 2 || latest.Results[1].Date.String() != "2024-09-14" {
		t.Errorf("latest = %+v", latest.Results)
	}

	sort.Strings(summary.Written)
	wantWritten := []string{"BONOLOTO.json", "PRIMITIVA.json", "lae_historico.json", "lae_latest.json"}
	if !reflect.DeepEqual(summary.Written, wantWritten) {
		t.Errorf("Written = %v, want %v", summary.Written, wantWritten)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"GORDO.json"}) {
		t.Errorf("Skipped = %v", summary.Skipped)
	}
	if _, err := os.Stat(filepath.Join(dir, "GORDO.json")); !os.IsNotExist(err) {
		t.Error("GORDO.json should not exist")
	}
}

func TestBuildSnapshots_LatestPublishesOnlyLatestView(t *testing.T) {
	src := &stubSource{answers: map[string]models.WindowResult{
		"EURO 2024-09-18..2024-10-01": {Draws: []models.Draw{
			mkDraw(models.Euro, "2024-09-24", "x"),
			mkDraw(models.Euro, "2024-09-27", "x"),
		}},
	}}
	dir := t.TempDir()

	summary, err := BuildSnapshots(context.Background(),
		Deps{Source: src, Now: func() time.Time { return fixedNow }},
		[]models.Game{models.Euro}, Spec{Mode: ModeLatest, Days: 14}, dir)
	if err != nil {
		t.Fatalf("BuildSnapshots error: %v", err)
	}

	if !reflect.DeepEqual(summary.Written, []string{"lae_latest.json"}) {
		t.Errorf("Written = %v, want only the latest view", summary.Written)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("output dir holds %d files, want 1", len(entries))
	}
	latest := readSnapshot(t, filepath.Join(dir, "lae_latest.json"))
	if len(latest.Results) != 1 || latest.Results[0].Date.String() != "2024-09-27" {
		t.Errorf("latest = %+v", latest.Results)
	}
}

func TestBuildSnapshots_OutageKeepsPublishedFiles(t *testing.T) {
	dir := t.TempDir()
	deps := Deps{Now: func() time.Time { return fixedNow }}
	spec := Spec{Mode: ModeHistoric, StartYear: 2024, EndYear: 2024}
	games := []models.Game{models.Gordo}

	deps.Source = &stubSource{answers: map[string]models.WindowResult{
		"GORDO 2024": {Draws: []models.Draw{mkDraw(models.Gordo, "2024-09-15", "ok")}},
	}}
	if _, err := BuildSnapshots(context.Background(), deps, games, spec, dir); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(filepath.Join(dir, "lae_historico.json"))

	deps.Source = &stubSource{}
	summary, err := BuildSnapshots(context.Background(), deps, games, spec, dir)
	if err != nil {
		t.Fatalf("BuildSnapshots error: %v", err)
	}
	if len(summary.Written) != 0 || len(summary.Skipped) != 3 {
		t.Errorf("Written = %v, Skipped = %v", summary.Written, summary.Skipped)
	}
	after, _ := os.ReadFile(filepath.Join(dir, "lae_historico.json"))
	if string(before) != string(after) {
		t.Error("outage replaced the historic file")
	}
}

func TestBuildSnapshots_ParallelMatchesSequential(t *testing.T) {
	answers := map[string]models.WindowResult{}
	for _, g := range models.AllGames {
		answers[string(g)+" 2024"] = models.WindowResult{Draws: []models.Draw{mkDraw(g, "2024-06-01", "s")}}
	}
	spec := Spec{Mode: ModeHistoric, StartYear: 2023, EndYear: 2024}
	deps := Deps{Now: func() time.Time { return fixedNow }}

	deps.Source = &stubSource{answers: answers}
	seq, err := BuildSnapshots(context.Background(), deps, models.AllGames, spec, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	spec.Parallel = true
	deps.Source = &stubSource{answers: answers}
	par, err := BuildSnapshots(context.Background(), deps, models.AllGames, spec, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(seq.Errors, par.Errors) || !reflect.DeepEqual(seq.CountsByGame, par.CountsByGame) {
		t.Errorf("parallel run differs:\nseq %v %v\npar %v %v", seq.Errors, seq.CountsByGame, par.Errors, par.CountsByGame)
	}
}

func TestBuildSnapshots_RepeatedGamesRunOnce(t *testing.T) {
	src := &stubSource{answers: map[string]models.WindowResult{
		"EURO 2024": {Draws: []models.Draw{mkDraw(models.Euro, "2024-09-13", "e")}},
	}}
	games := []models.Game{models.Euro, models.Gordo, models.Euro}

	summary, err := BuildSnapshots(context.Background(),
		Deps{Source: src, Now: func() time.Time { return fixedNow }},
		games, Spec{Mode: ModeHistoric, StartYear: 2024, EndYear: 2024, Parallel: true}, t.TempDir())
	if err != nil {
		t.Fatalf("BuildSnapshots error: %v", err)
	}

	sort.Strings(src.calls)
	if want := []string{"EURO 2024", "GORDO 2024"}; !reflect.DeepEqual(src.calls, want) {
		t.Errorf("resolved %v, want %v", src.calls, want)
	}
	if want := []string{"EURO.json", "lae_historico.json", "lae_latest.json"}; !reflect.DeepEqual(sortedCopy(summary.Written), want) {
		t.Errorf("Written = %v, want %v", summary.Written, want)
	}
	if !reflect.DeepEqual(summary.Skipped, []string{"GORDO.json"}) {
		t.Errorf("Skipped = %v", summary.Skipped)
	}
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestBuildSnapshots_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()

	_, err := BuildSnapshots(ctx, Deps{Source: &stubSource{}}, models.AllGames,
		Spec{Mode: ModeHistoric, StartYear: 2024, EndYear: 2024}, dir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("cancelled run published %d files", len(entries))
	}
}

func TestWindows(t *testing.T) {
	today := models.NewDate(2024, time.October, 1)

	tests := []struct {
		name     string
		spec     Spec
		expected []string
		wantErr  bool
	}{
		{"years up to today", Spec{Mode: ModeHistoric, StartYear: 2022}, []string{"2022", "2023", "2024"}, false},
		{"explicit years", Spec{Mode: ModeHistoric, StartYear: 2013, EndYear: 2014}, []string{"2013", "2014"}, false},
		{"latest span", Spec{Mode: ModeLatest, Days: 3}, []string{"2024-09-29..2024-10-01"}, false},
		{"inverted years", Spec{Mode: ModeHistoric, StartYear: 2024, EndYear: 2020}, nil, true},
		{"unknown mode", Spec{Mode: "weekly"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Windows(tt.spec, today)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Windows error = %v, wantErr %v", err, tt.wantErr)
			}
			var got []string
			for _, w := range windows {
				got = append(got, w.Label)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("labels = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDedup_FirstSeenWins(t *testing.T) {
	draws := []models.Draw{
		mkDraw(models.Primitiva, "2024-09-12", "first"),
		mkDraw(models.Bonoloto, "2024-09-12", "other game"),
		mkDraw(models.Primitiva, "2024-09-12", "second"),
	}
	got := Dedup(draws)
	if len(got) != 2 || got[0].Source != "first" || got[1].Game != models.Bonoloto {
		t.Errorf("Dedup = %+v", got)
	}
}

func TestRunSummary_Report(t *testing.T) {
	s := RunSummary{
		RunID:        "abc",
		Mode:         ModeLatest,
		GeneratedAt:  fixedNow,
		CountsByGame: map[models.Game]int{models.Euro: 2, models.Primitiva: 5},
		Errors:       []string{"GORDO 2024-09-18..2024-10-01: no_data (2 variants)"},
		Written:      []string{"lae_latest.json"},
	}
	report := s.Report()

	for _, want := range []string{"*Loterias latest run*", "PRIMITIVA: 5", "EURO: 2", `lae\_latest.json`, "*Errors (1)*"} {
		if !strings.Contains(report, want) {
			t.Errorf("report lacks %q:\n%s", want, report)
		}
	}
	if strings.Index(report, "PRIMITIVA") > strings.Index(report, "EURO") {
		t.Error("games should be listed in publication order")
	}
}
