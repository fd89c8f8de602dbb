package interfaces

import (
	"context"

	"github.com/Vodeneev/loterias/internal/pkg/fetch"
	"github.com/Vodeneev/loterias/internal/pkg/models"
)

// Fetcher retrieves one payload from an upstream source.
type Fetcher interface {
	// Fetch performs the request with the transport's retry policy applied
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Payload, error)
}

// Notifier delivers a short run report to operators.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// SnapshotMirror copies a published file to secondary storage.
type SnapshotMirror interface {
	Mirror(ctx context.Context, name string, data []byte) error
}

// DrawSource resolves the draws of one game for one window.
type DrawSource interface {
	Resolve(ctx context.Context, game models.Game, window models.Window) models.WindowResult
}
