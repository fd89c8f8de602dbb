package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// GeneratedAtLayout renders snapshot timestamps as UTC with a trailing Z.
const GeneratedAtLayout = "2006-01-02T15:04:05Z"

// Snapshot is the published document of one view
type Snapshot struct {
	GeneratedAt string        `json:"generated_at"`
	Results     []models.Draw `json:"results"`
	Errors      []string      `json:"errors"`
}

// Exporter builds the views of one run. Every view shares the same timestamp.
type Exporter struct {
	generatedAt string
}

func NewExporter(generatedAt time.Time) *Exporter {
	return &Exporter{generatedAt: generatedAt.UTC().Format(GeneratedAtLayout)}
}

// Historic is the full list of draws of the run.
func (e *Exporter) Historic(draws []models.Draw, errs []string) *Snapshot {
	return e.snapshot(draws, errs)
}

// PerGame keeps the draws of one game and the diagnostics naming it.
func (e *Exporter) PerGame(game models.Game, draws []models.Draw, errs []string) *Snapshot {
	var own []models.Draw
	for _, d := range draws {
		if d.Game == game {
			own = append(own, d)
		}
	}
	var ownErrs []string
	for _, msg := range errs {
		if ErrorGame(msg) == game {
			ownErrs = append(ownErrs, msg)
		}
	}
	return e.snapshot(own, ownErrs)
}

// Latest keeps the most recent draw of every game.
func (e *Exporter) Latest(draws []models.Draw, errs []string) *Snapshot {
	latest := make(map[models.Game]models.Draw)
	for _, d := range draws {
		if cur, ok := latest[d.Game]; !ok || d.Date.After(cur.Date.Time) {
			latest[d.Game] = d
		}
	}

	out := make([]models.Draw, 0, len(latest))
	for _, g := range models.AllGames {
		if d, ok := latest[g]; ok {
			out = append(out, d)
		}
	}
	models.SortDraws(out)
	return e.snapshot(out, errs)
}

func (e *Exporter) snapshot(draws []models.Draw, errs []string) *Snapshot {
	s := &Snapshot{
		GeneratedAt: e.generatedAt,
		Results:     append([]models.Draw{}, draws...),
		Errors:      append([]string{}, errs...),
	}
	return s
}

// ExportToJSON renders a snapshot as indented UTF-8 JSON.
func ExportToJSON(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// ErrorGame returns the game a diagnostic string starts with, or "" when it names none.
func ErrorGame(msg string) models.Game {
	head := msg
	if i := strings.IndexAny(msg, " :"); i >= 0 {
		head = msg[:i]
	}
	for _, g := range models.AllGames {
		if string(g) == head {
			return g
		}
	}
	return ""
}

// PrintSummary logs the size of a snapshot per game.
func PrintSummary(name string, s *Snapshot) {
	counts := make(map[models.Game]int)
	for _, d := range s.Results {
		counts[d.Game]++
	}

	args := []any{"view", name, "generated_at", s.GeneratedAt, "draws", len(s.Results), "errors", len(s.Errors)}
	for _, g := range models.AllGames {
		if n, ok := counts[g]; ok {
			args = append(args, strings.ToLower(string(g)), n)
		}
	}
	slog.Info("Snapshot summary", args...)
}
