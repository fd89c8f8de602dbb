package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Vodeneev/loterias/internal/pkg/export"
	"github.com/Vodeneev/loterias/internal/pkg/interfaces"
)

// Publisher is the only writer of the output directory.
type Publisher struct {
	dir    string
	mirror interfaces.SnapshotMirror
}

// NewPublisher creates dir if needed. mirror may be nil.
func NewPublisher(dir string, mirror interfaces.SnapshotMirror) (*Publisher, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Publisher{dir: dir, mirror: mirror}, nil
}

// Publish writes snap to name. A snapshot without results is never written,
// so an outage leaves the previously published file in place. It reports
// whether the file was written.
func (p *Publisher) Publish(ctx context.Context, name string, snap *export.Snapshot) (bool, error) {
	path := filepath.Join(p.dir, name)

	if len(snap.Results) == 0 {
		if _, err := os.Stat(path); err == nil {
			slog.Warn("Refusing to overwrite published file with an empty view", "file", path)
		} else if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Empty view, nothing published", "file", path)
		} else {
			slog.Warn("Empty view, nothing published", "file", path, "error", err)
		}
		return false, nil
	}

	data, err := export.ExportToJSON(snap)
	if err != nil {
		return false, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return false, err
	}
	slog.Info("Published snapshot", "file", path, "draws", len(snap.Results), "errors", len(snap.Errors), "bytes", len(data))

	if p.mirror != nil {
		if err := p.mirror.Mirror(ctx, name, data); err != nil {
			slog.Warn("Failed to mirror snapshot", "file", name, "error", err)
		}
	}
	return true, nil
}

// writeFileAtomic replaces path through a temporary file in the same
// directory, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
