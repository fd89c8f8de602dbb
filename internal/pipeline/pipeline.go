package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/loterias/internal/pkg/export"
	"github.com/Vodeneev/loterias/internal/pkg/interfaces"
	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/parserutil"
	"github.com/Vodeneev/loterias/internal/pkg/publish"
)

// Mode selects the windows of a run and the views it publishes.
type Mode string

const (
	// ModeHistoric walks calendar years and publishes every view.
	ModeHistoric Mode = "historic"
	// ModeLatest walks one recent day span and publishes only the latest view.
	ModeLatest Mode = "latest"
)

// Files names the published views.
type Files struct {
	Historic string
	Latest   string
	// PerGamePattern is formatted with the game name, e.g. "%s.json".
	PerGamePattern string
}

// Spec describes what one run fetches.
type Spec struct {
	Mode      Mode
	StartYear int
	EndYear   int // 0 = current year
	Days      int
	Parallel  bool
	// A game with fewer draws than this is reported as too_few_valid_draws
	MinValidDraws int
	Files         Files
}

// Deps are the collaborators of a run.
type Deps struct {
	Source interfaces.DrawSource
	// Mirror receives a copy of every written file. Optional.
	Mirror interfaces.SnapshotMirror
	RunID  string
	Now    func() time.Time
}

// RunSummary reports what a run produced.
type RunSummary struct {
	RunID        string
	Mode         Mode
	GeneratedAt  time.Time
	CountsByGame map[models.Game]int
	Errors       []string
	Written      []string
	Skipped      []string
	Attempts     int
}

type gameResult struct {
	draws    []models.Draw
	errors   []string
	attempts int
}

// BuildSnapshots resolves every game over the windows of spec, merges the
// results and publishes the views to outDir. Windows that could not be
// resolved end up in the summary errors. Only output failures and
// cancellation are returned as errors.
func BuildSnapshots(ctx context.Context, deps Deps, games []models.Game, spec Spec, outDir string) (RunSummary, error) {
	now := time.Now
	if deps.Now != nil {
		now = deps.Now
	}
	spec = withDefaults(spec)
	games = uniqueGames(games)

	summary := RunSummary{
		RunID:        deps.RunID,
		Mode:         spec.Mode,
		CountsByGame: make(map[models.Game]int),
	}

	publisher, err := publish.NewPublisher(outDir, deps.Mirror)
	if err != nil {
		return summary, err
	}

	windows, err := Windows(spec, models.DateOf(now().UTC()))
	if err != nil {
		return summary, err
	}
	slog.Info("Starting run", "run_id", deps.RunID, "mode", spec.Mode, "games", games,
		"windows", len(windows), "parallel", spec.Parallel)

	results := make([]gameResult, len(games))
	index := make(map[models.Game]int, len(games))
	for i, g := range games {
		index[g] = i
	}

	parserutil.RunGames(ctx, games, func(ctx context.Context, game models.Game) error {
		r := &results[index[game]]
		for _, w := range windows {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res := deps.Source.Resolve(ctx, game, w)
			r.attempts += len(res.Attempts)
			if res.Err != nil {
				r.errors = append(r.errors, res.Err.Error())
				continue
			}
			r.draws = append(r.draws, res.Draws...)
		}
		return nil
	}, parserutil.RunOptions{Parallel: spec.Parallel, LogStart: true})

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("run interrupted, nothing published: %w", err)
	}

	var all []models.Draw
	for _, r := range results {
		all = append(all, r.draws...)
		summary.Errors = append(summary.Errors, r.errors...)
		summary.Attempts += r.attempts
	}
	merged := Dedup(all)
	models.SortDraws(merged)

	for _, d := range merged {
		summary.CountsByGame[d.Game]++
	}
	for _, g := range games {
		if n := summary.CountsByGame[g]; n < spec.MinValidDraws {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: too_few_valid_draws (%d)", g, n))
		}
	}

	summary.GeneratedAt = now().UTC()
	exporter := export.NewExporter(summary.GeneratedAt)

	type view struct {
		name string
		snap *export.Snapshot
	}
	var views []view
	if spec.Mode == ModeHistoric {
		views = append(views, view{spec.Files.Historic, exporter.Historic(merged, summary.Errors)})
		for _, g := range games {
			views = append(views, view{fmt.Sprintf(spec.Files.PerGamePattern, g), exporter.PerGame(g, merged, summary.Errors)})
		}
	}
	views = append(views, view{spec.Files.Latest, exporter.Latest(merged, summary.Errors)})

	for _, v := range views {
		written, err := publisher.Publish(ctx, v.name, v.snap)
		if err != nil {
			return summary, err
		}
		if written {
			export.PrintSummary(v.name, v.snap)
			summary.Written = append(summary.Written, v.name)
		} else {
			summary.Skipped = append(summary.Skipped, v.name)
		}
	}

	slog.Info("Run finished", "run_id", deps.RunID, "draws", len(merged), "errors", len(summary.Errors),
		"written", len(summary.Written), "skipped", len(summary.Skipped))
	return summary, nil
}

// Windows lists the windows of a run in order.
func Windows(spec Spec, today models.Date) ([]models.Window, error) {
	switch spec.Mode {
	case ModeHistoric:
		end := spec.EndYear
		if end == 0 {
			end = today.Year()
		}
		if spec.StartYear <= 0 || end < spec.StartYear {
			return nil, fmt.Errorf("invalid year range %d..%d", spec.StartYear, end)
		}
		windows := make([]models.Window, 0, end-spec.StartYear+1)
		for y := spec.StartYear; y <= end; y++ {
			windows = append(windows, models.YearWindow(y))
		}
		return windows, nil
	case ModeLatest:
		return []models.Window{models.RecentWindow(today, spec.Days)}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", spec.Mode)
	}
}

// Dedup keeps the first draw seen for every (game, date).
func Dedup(draws []models.Draw) []models.Draw {
	seen := make(map[models.DrawKey]bool, len(draws))
	out := make([]models.Draw, 0, len(draws))
	for _, d := range draws {
		k := d.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// uniqueGames drops repeated games, keeping the first occurrence.
func uniqueGames(games []models.Game) []models.Game {
	seen := make(map[models.Game]bool, len(games))
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}

func withDefaults(spec Spec) Spec {
	if spec.Mode == "" {
		spec.Mode = ModeHistoric
	}
	if spec.Days <= 0 {
		spec.Days = 14
	}
	if spec.MinValidDraws <= 0 {
		spec.MinValidDraws = 1
	}
	if spec.Files.Historic == "" {
		spec.Files.Historic = "lae_historico.json"
	}
	if spec.Files.Latest == "" {
		spec.Files.Latest = "lae_latest.json"
	}
	if spec.Files.PerGamePattern == "" {
		spec.Files.PerGamePattern = "%s.json"
	}
	return spec
}
