package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/Vodeneev/loterias/internal/parser/payload"
	"github.com/Vodeneev/loterias/internal/parser/sources"
	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/interfaces"
	"github.com/Vodeneev/loterias/internal/pkg/models"
	"github.com/Vodeneev/loterias/internal/pkg/performance"
)

var (
	// ErrNoRows means no strategy recognized anything in the payload.
	ErrNoRows = errors.New("no rows extracted")
	// ErrNoDrawsInWindow means rows were extracted but none survived validation inside the window.
	ErrNoDrawsInWindow = errors.New("no valid draws in window")
)

// Expander lists the variants to try for a game and window, in order.
type Expander interface {
	Expand(game models.Game, window models.Window) []sources.Variant
}

// Options tunes how variants are tried.
type Options struct {
	// Randomized pause between two requests
	PauseMin time.Duration
	PauseMax time.Duration
	// Draws this many days outside the window are still accepted
	WindowSlackDays int
	// Ceiling of draw days probed by a per-date variant for one window
	MaxDateProbes int

	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// ExhaustedError reports a window for which no variant produced a valid draw.
type ExhaustedError struct {
	Game     models.Game
	Label    string
	Variants int
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s %s: no_data (%d variants)", e.Game, e.Label, e.Variants)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// Orchestrator walks the variant list of a window until one yields valid draws.
type Orchestrator struct {
	catalog    Expander
	fetcher    interfaces.Fetcher
	normalizer interfaces.Normalizer
	tracker    *performance.Tracker
	opts       Options
}

func New(catalog Expander, fetcher interfaces.Fetcher, normalizer interfaces.Normalizer, opts Options) *Orchestrator {
	if opts.Sleep == nil {
		opts.Sleep = fetch.SleepContext
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.PauseMax < opts.PauseMin {
		opts.PauseMax = opts.PauseMin
	}
	return &Orchestrator{
		catalog:    catalog,
		fetcher:    fetcher,
		normalizer: normalizer,
		opts:       opts,
	}
}

// WithTracker makes the orchestrator record every attempt in t.
func (o *Orchestrator) WithTracker(t *performance.Tracker) *Orchestrator {
	o.tracker = t
	return o
}

// Resolve tries the variants of window in order and returns the draws of the
// first one yielding at least one valid draw. Draws of different variants are
// never merged. When every variant fails the result carries an *ExhaustedError.
func (o *Orchestrator) Resolve(ctx context.Context, game models.Game, window models.Window) models.WindowResult {
	result := models.WindowResult{Game: game, Window: window}
	label := windowLabel(window)
	variants := o.catalog.Expand(game, window)

	var errs *multierror.Error
	for i, v := range variants {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				errs = multierror.Append(errs, err)
				break
			}
		}

		start := time.Now()
		var draws []models.Draw
		var attempt models.Attempt
		if v.PerDate {
			draws, attempt = o.tryPerDate(ctx, game, window, v)
		} else {
			draws, attempt = o.tryVariant(ctx, game, window, v)
		}
		attempt.Game = game
		attempt.Window = label
		attempt.Variant = v.ID
		attempt.Duration = time.Since(start)

		result.Attempts = append(result.Attempts, attempt)
		if o.tracker != nil {
			o.tracker.RecordAttempt(attempt)
		}

		if attempt.Status == models.StatusSuccess {
			slog.Info("Window resolved",
				"game", game, "window", label, "variant", v.ID,
				"strategy", attempt.Strategy, "draws", len(draws), "rejected", attempt.Rejected)
			result.Variant = v.ID
			result.Draws = draws
			return result
		}

		slog.Debug("Variant gave no draws",
			"game", game, "window", label, "variant", v.ID, "status", attempt.Status, "error", attempt.Err)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", v.ID, attempt.Err))

		if ctx.Err() != nil {
			break
		}
	}

	result.Err = &ExhaustedError{
		Game:     game,
		Label:    label,
		Variants: len(variants),
		Cause:    errs.ErrorOrNil(),
	}
	slog.Warn("Window exhausted", "game", game, "window", label, "variants", len(variants), "error", errs.ErrorOrNil())
	return result
}

func (o *Orchestrator) tryVariant(ctx context.Context, game models.Game, window models.Window, v sources.Variant) ([]models.Draw, models.Attempt) {
	p, err := o.fetcher.Fetch(ctx, v.Request())
	if err != nil {
		return nil, models.Attempt{Status: models.StatusHTTPError, Err: err}
	}

	draws, strategy, rows, rejected := o.extract(p, game, window, window, v.ID)
	attempt := models.Attempt{Strategy: strategy, Draws: len(draws), Rejected: rejected}
	attempt.Status, attempt.Err = statusFor(rows, len(draws))
	return draws, attempt
}

// tryPerDate asks a per-date source for every draw day of window. A day whose
// page is missing is retried on the day before and the day after.
func (o *Orchestrator) tryPerDate(ctx context.Context, game models.Game, window models.Window, v sources.Variant) ([]models.Draw, models.Attempt) {
	days := sources.DrawDays(game, window)
	if o.opts.MaxDateProbes > 0 && len(days) > o.opts.MaxDateProbes {
		slog.Warn("Too many draw days, probing only the first ones",
			"game", game, "variant", v.ID, "days", len(days), "max", o.opts.MaxDateProbes)
		days = days[:o.opts.MaxDateProbes]
	}

	var (
		out      []models.Draw
		attempt  models.Attempt
		errs     *multierror.Error
		seen     = make(map[string]bool)
		requests int
		fetched  int
		rows     int
	)

probe:
	for _, d := range days {
		if seen[d.String()] {
			continue
		}
		for _, nd := range sources.Neighbours(d) {
			if requests > 0 {
				if err := o.pause(ctx); err != nil {
					errs = multierror.Append(errs, err)
					break probe
				}
			}
			requests++

			p, err := o.fetcher.Fetch(ctx, v.ForDate(nd))
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", nd, err))
				if ctx.Err() != nil {
					break probe
				}
				continue
			}
			fetched++

			day := models.Window{From: nd, To: nd, Label: nd.String()}
			draws, strategy, n, rejected := o.extract(p, game, day, window, v.ID)
			rows += n
			attempt.Rejected += rejected
			if len(draws) == 0 {
				continue
			}
			attempt.Strategy = strategy
			for _, dr := range draws {
				if seen[dr.Date.String()] {
					continue
				}
				seen[dr.Date.String()] = true
				out = append(out, dr)
			}
			break
		}
	}

	attempt.Draws = len(out)
	switch {
	case len(out) > 0:
		attempt.Status = models.StatusSuccess
	case fetched == 0 && errs != nil:
		attempt.Status = models.StatusHTTPError
		attempt.Err = errs.ErrorOrNil()
	default:
		attempt.Status, attempt.Err = statusFor(rows, 0)
	}
	return out, attempt
}

// extract runs the strategies for the payload kind in order and keeps the
// first one whose rows validate into draws inside keep. hint is handed to the
// strategies as the requested window.
func (o *Orchestrator) extract(p *fetch.Payload, game models.Game, hint, keep models.Window, source string) ([]models.Draw, string, int, int) {
	in := payload.Input{Body: p.Body, Kind: p.Kind, Game: game, Window: hint}

	rows, rejected := 0, 0
	for _, s := range payload.ForKind(p.Kind) {
		raw := payload.Run(s, in)
		if len(raw) == 0 {
			continue
		}
		rows += len(raw)

		valid, n := o.normalizer.NormalizeAll(game, raw, source)
		rejected += n

		inWindow := make([]models.Draw, 0, len(valid))
		for _, d := range valid {
			if !keep.Contains(d.Date, o.opts.WindowSlackDays) {
				rejected++
				continue
			}
			inWindow = append(inWindow, d)
		}
		if len(inWindow) > 0 {
			return inWindow, s.Name(), rows, rejected
		}
	}
	return nil, "", rows, rejected
}

func statusFor(rows, draws int) (models.AttemptStatus, error) {
	switch {
	case draws > 0:
		return models.StatusSuccess, nil
	case rows == 0:
		return models.StatusParseError, ErrNoRows
	default:
		return models.StatusEmpty, ErrNoDrawsInWindow
	}
}

func (o *Orchestrator) pause(ctx context.Context) error {
	d := o.opts.PauseMin
	if spread := o.opts.PauseMax - o.opts.PauseMin; spread > 0 {
		d += time.Duration(o.opts.Rand() * float64(spread))
	}
	if d <= 0 {
		return ctx.Err()
	}
	return o.opts.Sleep(ctx, d)
}

func windowLabel(w models.Window) string {
	if w.Label != "" {
		return w.Label
	}
	return w.From.String() + ".." + w.To.String()
}
