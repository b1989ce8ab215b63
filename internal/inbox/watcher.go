package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/marginalia/internal/storage"
)

// settle is how long a file must stay quiet before it is converted. Editors
// and copy tools write in several steps.
const settle = 300 * time.Millisecond

// Watch processes files already in root, then watches root with fsnotify and
// converts each new or changed highlight file until ctx is canceled.
func Watch(ctx context.Context, p *Processor, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}

	logger.Info("inbox: watching", slog.String("root", root))

	if err := p.Scan(ctx); err != nil {
		logger.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func(rel string) {
		pending[rel] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for rel := range pending {
				delete(pending, rel)
				if _, err := p.Process(ctx, rel); err != nil {
					logger.Warn("inbox: process failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if name[0] == '.' || !storage.HasExt(name, Extensions...) {
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			logger.Debug("inbox: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			schedule(rel)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
