package spool

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nevian427/yasmdr/internal/model"
	"github.com/nevian427/yasmdr/internal/server"
	jww "github.com/spf13/jwalterweatherman"
)

// DoneDir - куда переезжают разобранные файлы.
const DoneDir = "done"

// Source - имя источника для строк из каталога.
const Source = "spool"

// Watcher забирает файлы с выгрузкой SMDR из каталога: сначала то, что
// уже лежит, потом всё новое. Разобранный файл уезжает в done/.
type Watcher struct {
	dir string
	// сколько ждём после появления файла, пока его допишут
	settle time.Duration
}

func New(dir string, settle time.Duration) *Watcher {
	return &Watcher{dir: dir, settle: settle}
}

func (w *Watcher) Name() string { return Source }

func (w *Watcher) Serve(ctx context.Context, out chan<- model.Line) error {
	if err := os.MkdirAll(filepath.Join(w.dir, DoneDir), 0755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return err
	}

	// подписались раньше обхода - ничего не пропустим
	if err := w.Backfill(ctx, out); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Rename) == 0 || !w.candidate(evt.Name) {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.settle):
			}
			if err := w.process(ctx, evt.Name, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				jww.WARN.Printf("Spool file %s: %s", evt.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			jww.WARN.Printf("Spool watcher error: %v", err)
		}
	}
}

// Backfill разбирает файлы, которые уже лежат в каталоге, по имени.
func (w *Watcher) Backfill(ctx context.Context, out chan<- model.Line) error {
	entries, err := filepath.Glob(filepath.Join(w.dir, "*"))
	if err != nil {
		return err
	}
	sort.Strings(entries)
	for _, e := range entries {
		if !w.candidate(e) {
			continue
		}
		if err := w.process(ctx, e, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			jww.WARN.Printf("Spool file %s: %s", e, err)
		}
	}
	return nil
}

// обычный файл, не скрытый и не временный
func (w *Watcher) candidate(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		// уже увезли или переименовали
		return false
	}
	return fi.Mode().IsRegular()
}

func (w *Watcher) process(ctx context.Context, path string, out chan<- model.Line) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	err = server.ReadLines(ctx, f, Source, out)
	f.Close()
	if err != io.EOF {
		return err
	}
	jww.INFO.Printf("Processed spool file %s", path)
	return os.Rename(path, filepath.Join(w.dir, DoneDir, filepath.Base(path)))
}
