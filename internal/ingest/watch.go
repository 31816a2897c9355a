package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/engram-ai/engram-go/internal/engine"
)

// watchDebounce is the quiet period after the last change before the feed
// is re-imported, so editors that write in bursts trigger one import.
const watchDebounce = 2 * time.Second

// WatchFile re-imports the JSONL feed at path whenever it changes.
// Blocks until the context is cancelled. The containing directory is
// watched rather than the file itself because editors usually replace
// files by rename, which would drop a watch on the file.
func WatchFile(ctx context.Context, eng *engine.Engine, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	debounce := time.NewTimer(watchDebounce)
	debounce.Stop() // Don't start yet

	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-debounce.C:
			stats, err := ImportFile(ctx, eng, path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error re-importing %s: %v\n", path, err)
				continue
			}
			fmt.Printf("Re-imported %s: %d entities, %d relations, %d skipped\n",
				path, stats.Entities, stats.Relations, stats.Skipped)
		}
	}
}
