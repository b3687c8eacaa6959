package knowledge

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Listener is called with each newly published snapshot.
type Listener func(*Snapshot)

// Options configures a Store.
type Options struct {
	// RefreshInterval re-reads the source on a ticker. Zero disables polling.
	RefreshInterval time.Duration
	// WatchPath triggers an immediate refresh when this file changes.
	WatchPath string
	Logger    *slog.Logger
}

type subscriber struct {
	id int
	fn Listener
}

// Store owns the current portfolio snapshot. Readers get the snapshot
// without locking; only Refresh replaces it.
type Store struct {
	source   Source
	interval time.Duration
	watch    string
	logger   *slog.Logger
	now      func() time.Time

	current atomic.Pointer[Snapshot]

	refreshMu sync.Mutex
	// notifyMu orders deliveries so listeners always end on the current snapshot.
	notifyMu sync.Mutex

	subMu  sync.Mutex
	subs   []subscriber
	nextID int

	lifeMu  sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	once    sync.Once
}

// NewStore creates a Store over source. Nothing is loaded until Initialize.
func NewStore(source Source, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		source:   source,
		interval: opts.RefreshInterval,
		watch:    opts.WatchPath,
		logger:   logger,
		now:      time.Now,
	}
}

// Initialize loads the first snapshot and starts background refreshes.
// If the first load fails the error is returned, but polling and watching
// still start so a later refresh can publish.
func (s *Store) Initialize(ctx context.Context) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.stopped {
		return errors.New("knowledge store is shut down")
	}
	if s.started {
		if s.current.Load() != nil {
			return nil
		}
		if _, err := s.Refresh(ctx); err != nil {
			return errors.Wrap(err, "initial portfolio load failed")
		}
		return nil
	}

	_, loadErr := s.Refresh(ctx)

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.watch != "" {
		if err := s.startWatcher(loopCtx); err != nil {
			s.logger.Warn("file watch disabled", "path", s.watch, "error", err)
		}
	}

	if s.interval > 0 {
		s.wg.Add(1)
		go s.poll(loopCtx)
	}

	s.started = true
	if loadErr != nil {
		s.logger.Warn("knowledge store started without a snapshot", "interval", s.interval, "watch", s.watch, "error", loadErr)
		return errors.Wrap(loadErr, "initial portfolio load failed")
	}
	s.logger.Info("knowledge store initialized", "interval", s.interval, "watch", s.watch)
	return nil
}

// Snapshot returns the current snapshot, or nil before initialization.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Subscribe registers fn for future snapshot changes and returns a
// function that removes it. Listeners run one at a time and must not call
// Refresh.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Refresh re-reads the source and publishes a new snapshot if the
// content changed. It reports whether a new snapshot was published.
func (s *Store) Refresh(ctx context.Context) (bool, error) {
	s.refreshMu.Lock()

	tables, err := s.source.Load(ctx)
	if err != nil {
		s.refreshMu.Unlock()
		return false, errors.Wrap(err, "failed to load portfolio tables")
	}

	if err := tables.Validate(); err != nil {
		s.refreshMu.Unlock()
		return false, errors.Wrap(err, "portfolio tables invalid")
	}

	digest, err := Digest(tables)
	if err != nil {
		s.refreshMu.Unlock()
		return false, err
	}

	if prev := s.current.Load(); prev != nil && prev.Digest == digest {
		s.refreshMu.Unlock()
		return false, nil
	}

	snap := &Snapshot{
		Tables:      tables,
		LastUpdated: s.now(),
		Digest:      digest,
	}
	s.current.Store(snap)
	s.refreshMu.Unlock()

	s.logger.Info("portfolio snapshot published", "digest", digest[:12], "projects", len(tables.Projects))

	s.notifyMu.Lock()
	// A newer snapshot published meanwhile has been or will be delivered instead.
	if s.current.Load() == snap {
		s.notify(snap)
	}
	s.notifyMu.Unlock()
	return true, nil
}

// Shutdown stops background refreshes and drops all subscribers. A shut
// down store cannot be initialized again.
func (s *Store) Shutdown() {
	s.once.Do(func() {
		s.lifeMu.Lock()
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
		if s.watcher != nil {
			s.watcher.Close()
		}
		s.lifeMu.Unlock()

		s.wg.Wait()

		s.subMu.Lock()
		s.subs = nil
		s.subMu.Unlock()

		s.logger.Info("knowledge store stopped")
	})
}

func (s *Store) notify(snap *Snapshot) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

func (s *Store) poll(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshLogged(ctx, "poll")
		}
	}
}

func (s *Store) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Editors often replace the file, so watch the directory.
	dir := filepath.Dir(s.watch)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", dir)
	}

	s.watcher = watcher
	s.wg.Add(1)
	go s.watchLoop(ctx, watcher)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	target := filepath.Clean(s.watch)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				s.refreshLogged(ctx, "watch")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", "error", err)
		}
	}
}

func (s *Store) refreshLogged(ctx context.Context, trigger string) {
	changed, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Warn("portfolio refresh failed, keeping previous snapshot", "trigger", trigger, "error", err)
		return
	}
	if changed {
		s.logger.Debug("portfolio refreshed", "trigger", trigger)
	}
}
