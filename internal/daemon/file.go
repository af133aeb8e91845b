package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/storage"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

const debounceDelay = 100 * time.Millisecond

// FileTracker is a Tracker that keeps facts in per-day JSON files. Changes
// made by any process writing the same directory are reported as
// FactsChanged.
type FileTracker struct {
	base string
	loc  *time.Location
	now  func() time.Time
	log  *zap.SugaredLogger

	mu sync.Mutex // serializes writes

	fsWatcher *fsnotify.Watcher
	watched   map[string]bool
	watchMu   sync.Mutex
	signals   chan Signal
	done      chan struct{}
	closeOnce sync.Once

	debounceMu sync.Mutex
	debounce   *time.Timer
}

// FileOption configures a FileTracker.
type FileOption func(*FileTracker)

// WithFileClock overrides time.Now.
func WithFileClock(now func() time.Time) FileOption {
	return func(t *FileTracker) { t.now = now }
}

// OpenFile opens a file-backed tracker rooted at base and starts watching it.
func OpenFile(base string, loc *time.Location, log *zap.SugaredLogger, opts ...FileOption) (*FileTracker, error) {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	t := &FileTracker{
		base:      base,
		loc:       loc,
		now:       time.Now,
		log:       log,
		fsWatcher: fsWatcher,
		watched:   make(map[string]bool),
		signals:   make(chan Signal, 1),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	if err := t.watchDay(t.now().In(t.loc)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	go t.processEvents()
	return t, nil
}

// GetTodaysFacts returns today's facts plus a fact still open from an
// earlier day.
func (t *FileTracker) GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := t.now()
	today := now.In(t.loc)
	if err := t.watchDay(today); err != nil {
		t.log.Warnw("cannot watch day directory", "error", err)
	}

	df, err := storage.LoadDay(t.base, today)
	if err != nil {
		return nil, &TransportError{Op: "GetTodaysFacts", Err: err}
	}
	facts := df.Facts

	open, openDay, err := storage.FindOpenFact(t.base, today)
	if err != nil {
		return nil, &TransportError{Op: "GetTodaysFacts", Err: err}
	}
	if open != nil && !timecalc.SameDay(openDay, today) {
		facts = append([]model.Fact{*open}, facts...)
	}

	out := make([]model.RawRecord, 0, len(facts))
	for _, f := range facts {
		end := now
		if f.End != nil {
			end = *f.End
		}
		f.DaemonSeconds = int64(end.Sub(f.Start) / time.Second)
		if f.DaemonSeconds < 0 {
			f.DaemonSeconds = 0
		}
		if f.Date.IsZero() {
			f.Date = timecalc.FromEpoch(timecalc.DateEpoch(f.Start, t.loc))
		}
		out = append(out, f.Record())
	}
	return out, nil
}

// AddFact records a fact. An open fact (endEpoch == 0) first closes the
// currently open one at its start time. A closed fact makes room for itself
// by trimming or splitting the facts it overlaps.
func (t *FileTracker) AddFact(ctx context.Context, name string, startEpoch, endEpoch int64, temporary bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	in := ParseFactString(name)
	if in.Activity == "" {
		return 0, fmt.Errorf("fact %q has no activity name", name)
	}
	start := timecalc.FromEpoch(startEpoch)
	if startEpoch == 0 {
		start = t.now().UTC()
	}

	var end *time.Time
	if endEpoch != 0 {
		e := timecalc.FromEpoch(endEpoch)
		if e.Before(start) {
			return 0, fmt.Errorf("fact %q ends before it starts", name)
		}
		end = &e
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if end == nil {
		if err := t.stopLocked(start); err != nil {
			return 0, err
		}
	} else if err := t.solveOverlapsLocked(start, *end); err != nil {
		return 0, &TransportError{Op: "AddFact", Err: err}
	}

	id, err := storage.NextID(t.base)
	if err != nil {
		return 0, &TransportError{Op: "AddFact", Err: err}
	}
	fact := model.Fact{
		ID:          id,
		Name:        in.Activity,
		Description: in.Description,
		Category:    in.Category,
		Tags:        in.Tags,
		Start:       start,
		End:         end,
		Date:        timecalc.FromEpoch(timecalc.DateEpoch(start, t.loc)),
	}
	if fact.Tags == nil {
		fact.Tags = []string{}
	}
	if err := storage.UpdateFact(t.base, start.In(t.loc), fact); err != nil {
		return 0, &TransportError{Op: "AddFact", Err: err}
	}
	t.log.Debugw("fact added", "id", id, "name", fact.Name, "temporary", temporary)
	t.notify()
	return id, nil
}

// solveOverlapsLocked makes room for a closed fact over [start, end). A fact
// lying entirely inside the interval is kept as is, since an overlap is
// better than lost time. A fact spanning the interval is cut at start and
// continues from end; a running one keeps running. A fact overlapping one
// edge is trimmed back to it.
func (t *FileTracker) solveOverlapsLocked(start, end time.Time) error {
	type stored struct {
		fact model.Fact
		day  time.Time
	}
	var (
		found []stored
		seen  = make(map[int64]bool)
	)
	keep := func(f model.Fact, day time.Time) {
		if !seen[f.ID] {
			seen[f.ID] = true
			found = append(found, stored{fact: f, day: day})
		}
	}

	// Closed facts are filed under their start day, so one that reaches into
	// the interval started no earlier than the day before it.
	days := []time.Time{start.In(t.loc).AddDate(0, 0, -1), start.In(t.loc)}
	if !timecalc.SameDay(start.In(t.loc), end.In(t.loc)) {
		days = append(days, end.In(t.loc))
	}
	for _, day := range days {
		df, err := storage.LoadDay(t.base, day)
		if err != nil {
			return err
		}
		for _, f := range df.Facts {
			keep(f, day)
		}
	}
	now := t.now()
	open, openDay, err := storage.FindOpenFact(t.base, now.In(t.loc))
	if err != nil {
		return err
	}
	if open != nil {
		keep(*open, openDay)
	}

	for _, s := range found {
		f := s.fact
		fEnd := now
		if f.End != nil {
			fEnd = *f.End
		}
		switch {
		case !f.Start.Before(end) || !fEnd.After(start):
			continue
		case f.End != nil && !f.Start.Before(start) && !fEnd.After(end):
			continue
		case f.Start.Before(start) && (f.End == nil || end.Before(fEnd)):
			if err := t.splitLocked(f, s.day, start, end); err != nil {
				return err
			}
			continue
		case !f.Start.Before(start):
			t.log.Debugw("moving fact start", "id", f.ID, "name", f.Name)
			f.Start = end
		default:
			t.log.Debugw("trimming fact end", "id", f.ID, "name", f.Name)
			f.End = &start
		}
		if err := storage.UpdateFact(t.base, s.day, f); err != nil {
			return err
		}
	}
	return nil
}

// splitLocked ends f at start and files the remainder from end onwards as a
// new fact with the same activity, description and tags.
func (t *FileTracker) splitLocked(f model.Fact, day, start, end time.Time) error {
	id, err := storage.NextID(t.base)
	if err != nil {
		return err
	}
	rest := f
	rest.ID = id
	rest.Start = end
	rest.Date = timecalc.FromEpoch(timecalc.DateEpoch(end, t.loc))
	rest.Tags = append([]string{}, f.Tags...)
	rest.DaemonSeconds = 0

	t.log.Debugw("splitting fact", "id", f.ID, "name", f.Name, "continuation", id)
	f.End = &start
	if err := storage.UpdateFact(t.base, day, f); err != nil {
		return err
	}
	return storage.UpdateFact(t.base, end.In(t.loc), rest)
}

// StopTracking closes the open fact at endEpoch, or now when endEpoch is 0.
// Having nothing to stop is not an error.
func (t *FileTracker) StopTracking(ctx context.Context, endEpoch int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	end := t.now().UTC()
	if endEpoch != 0 {
		end = timecalc.FromEpoch(endEpoch)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.stopLocked(end); err != nil {
		return err
	}
	t.notify()
	return nil
}

func (t *FileTracker) stopLocked(end time.Time) error {
	open, day, err := storage.FindOpenFact(t.base, end.In(t.loc))
	if err != nil {
		return &TransportError{Op: "StopTracking", Err: err}
	}
	if open == nil {
		return nil
	}
	if end.Before(open.Start) {
		end = open.Start
	}
	open.End = &end
	if err := storage.UpdateFact(t.base, day, *open); err != nil {
		return &TransportError{Op: "StopTracking", Err: err}
	}
	return nil
}

// Signals delivers FactsChanged whenever a day file changes. The channel is
// never closed; it simply goes quiet after Close.
func (t *FileTracker) Signals() <-chan Signal {
	return t.signals
}

// Close stops the watcher.
func (t *FileTracker) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.fsWatcher.Close()
		t.debounceMu.Lock()
		if t.debounce != nil {
			t.debounce.Stop()
		}
		t.debounceMu.Unlock()
	})
	return err
}

// watchDay makes sure the month directory holding day's file is watched.
// fsnotify is not recursive, so each month directory is added on demand.
func (t *FileTracker) watchDay(day time.Time) error {
	dir := filepath.Dir(storage.DayFilePath(t.base, day))
	t.watchMu.Lock()
	defer t.watchMu.Unlock()
	if t.watched[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := t.fsWatcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	t.watched[dir] = true
	t.log.Debugw("watching", "dir", dir)
	return nil
}

func (t *FileTracker) processEvents() {
	for {
		select {
		case <-t.done:
			return
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			if isDayFileEvent(event) {
				t.scheduleNotify()
			}
		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				t.scheduleNotify()
				continue
			}
			t.log.Warnw("watcher error", "error", err)
		}
	}
}

// isDayFileEvent accepts writes, creates and renames of *.json files.
// Atomic saves show up as a Create or Rename of the target.
func isDayFileEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".json")
}

func (t *FileTracker) scheduleNotify() {
	t.debounceMu.Lock()
	defer t.debounceMu.Unlock()
	if t.debounce != nil {
		t.debounce.Stop()
	}
	t.debounce = time.AfterFunc(debounceDelay, t.notify)
}

func (t *FileTracker) notify() {
	select {
	case <-t.done:
		return
	default:
	}
	select {
	case t.signals <- FactsChanged:
	default:
	}
}
