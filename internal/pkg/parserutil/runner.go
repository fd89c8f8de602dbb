package parserutil

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// GameFunc resolves every window of one game
type GameFunc func(ctx context.Context, game models.Game) error

// RunOptions configures how games are run
type RunOptions struct {
	// Parallel runs every game in its own goroutine. Games are otherwise run one after another.
	Parallel bool
	// LogStart logs when each game starts
	LogStart bool
	// OnError is called when a game returns an error. If nil, errors are logged.
	OnError func(game models.Game, err error)
}

// RunGames runs fn for every game and returns once all of them have finished,
// so callers can merge results after it without further locking.
func RunGames(ctx context.Context, games []models.Game, fn GameFunc, opts RunOptions) {
	if len(games) == 0 {
		return
	}

	// Default error handler logs errors
	onError := opts.OnError
	if onError == nil {
		onError = func(game models.Game, err error) {
			slog.Error("Game failed", "game", game, "error", err)
		}
	}

	run := func(game models.Game) {
		if opts.LogStart {
			slog.Info("Starting game", "game", game)
		}
		if err := fn(ctx, game); err != nil && ctx.Err() == nil {
			onError(game, err)
		}
	}

	if !opts.Parallel {
		for _, g := range games {
			if ctx.Err() != nil {
				return
			}
			run(g)
		}
		return
	}

	var wg sync.WaitGroup
	for _, g := range games {
		wg.Add(1)
		go func(g models.Game) {
			defer wg.Done()
			run(g)
		}(g)
	}
	wg.Wait()
}
