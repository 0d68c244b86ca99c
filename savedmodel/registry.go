package savedmodel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tensorbind/pure-tf/internal/tagset"
)

// record tracks one native session and the handles bound to it. A session
// is shared by every load of the same (path, tag set) and released when
// the last handle is disposed.
type record struct {
	id      int64
	path    string
	tags    []string // normalized
	session int64
	refs    int
}

// Registry deduplicates native sessions by (path, tag set) identity and
// owns their lifecycle. A zero Registry is not usable; construct with
// NewRegistry.
type Registry struct {
	backend Backend
	logger  zerolog.Logger

	mu      sync.Mutex
	records map[int64]*record
	nextID  int64
	closed  bool

	// loads serializes load-or-reuse per normalized (path, tags) key so
	// two concurrent first loads of one key produce one native session.
	loads singleflight.Group
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*Registry)

// WithLogger sets the logger for registry lifecycle events. The default
// discards everything.
func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a session registry over the given backend.
func NewRegistry(backend Backend, opts ...RegistryOption) *Registry {
	r := &Registry{
		backend: backend,
		logger:  zerolog.Nop(),
		records: make(map[int64]*record),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

type loadConfig struct {
	tags      []string
	signature string
}

// LoadOption configures a single Load call.
type LoadOption func(*loadConfig) error

// WithTags selects the MetaGraph to load by tag set. The default is the
// serving tag set ["serve"]. Order and duplicates are irrelevant: tag sets
// are compared as sets.
func WithTags(tags ...string) LoadOption {
	return func(cfg *loadConfig) error {
		normalized := tagset.Normalize(tags)
		if len(normalized) == 0 {
			return fmt.Errorf("at least one non-empty tag is required")
		}
		cfg.tags = normalized
		return nil
	}
}

// WithSignature selects the signature to bind the model handle to. The
// default is "serving_default".
func WithSignature(name string) LoadOption {
	return func(cfg *loadConfig) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("signature name cannot be empty")
		}
		cfg.signature = name
		return nil
	}
}

// Load inspects the SavedModel at dir, validates that the requested tag
// set and signature exist, and binds a model handle to the native session
// for (dir, tags), loading it first if no live handle already uses it.
//
// Path identity is string identity: two spellings of one directory load
// two native sessions, exactly like two different directories.
func (r *Registry) Load(dir string, opts ...LoadOption) (*Model, error) {
	cfg := loadConfig{
		tags:      []string{DefaultTag},
		signature: DefaultSignature,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	graphs, err := Inspect(dir)
	if err != nil {
		return nil, err
	}
	sig, err := findSignature(graphs, cfg.tags, cfg.signature)
	if err != nil {
		return nil, err
	}

	key := dir + "\x00" + tagset.Join(cfg.tags)
	for {
		v, err, _ := r.loads.Do(key, func() (any, error) {
			return r.findOrCreateRecord(dir, cfg.tags)
		})
		if err != nil {
			return nil, err
		}
		id := v.(int64)

		r.mu.Lock()
		rec, ok := r.records[id]
		if !ok {
			// Disposed between creation and binding; load again.
			r.mu.Unlock()
			continue
		}
		rec.refs++
		session := rec.session
		r.mu.Unlock()

		return &Model{
			registry:  r,
			recordID:  id,
			session:   session,
			path:      dir,
			tags:      append([]string(nil), cfg.tags...),
			signature: cfg.signature,
			sig:       sig,
		}, nil
	}
}

// findOrCreateRecord returns the id of the record for (dir, tags),
// creating it, and its native session, when none exists. The returned
// record's refcount is NOT incremented; the caller binds it.
func (r *Registry) findOrCreateRecord(dir string, tags []string) (int64, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, ErrRegistryClosed
	}
	for _, rec := range r.records {
		if rec.path == dir && tagset.Equal(rec.tags, tags) {
			id := rec.id
			session := rec.session
			r.mu.Unlock()
			r.logger.Debug().Str("path", dir).Strs("tags", tags).Int64("session", session).Msg("reusing saved model session")
			return id, nil
		}
	}
	r.mu.Unlock()

	session, err := r.backend.LoadGraph(dir, tagset.Join(tags))
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		releaseErr := r.backend.ReleaseSession(session)
		return 0, errors.Join(ErrRegistryClosed, releaseErr)
	}
	rec := &record{
		id:      r.nextID,
		path:    dir,
		tags:    append([]string(nil), tags...),
		session: session,
	}
	r.nextID++
	r.records[rec.id] = rec
	r.mu.Unlock()

	r.logger.Info().Str("path", dir).Strs("tags", tags).Int64("session", session).Msg("loaded saved model")
	return rec.id, nil
}

// release drops one handle's reference on a record and releases the
// native session when the last reference goes. A release after Close is a
// no-op: Close already released everything.
func (r *Registry) release(id int64) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	rec, ok := r.records[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("release of unknown registry record %d", id)
	}

	rec.refs--
	if rec.refs > 0 {
		path, tags, session, refs := rec.path, rec.tags, rec.session, rec.refs
		r.mu.Unlock()
		r.logger.Debug().Str("path", path).Strs("tags", tags).Int64("session", session).Int("refs", refs).Msg("disposed saved model handle")
		return nil
	}
	delete(r.records, id)
	r.mu.Unlock()

	err := r.backend.ReleaseSession(rec.session)
	if err != nil {
		r.logger.Error().Err(err).Str("path", rec.path).Int64("session", rec.session).Msg("failed to release saved model session")
		return err
	}
	r.logger.Info().Str("path", rec.path).Strs("tags", rec.tags).Int64("session", rec.session).Msg("released saved model session")
	return nil
}

// Close releases every live native session and marks the registry closed;
// subsequent loads fail with ErrRegistryClosed. Release failures are
// joined, not short-circuited, so one broken session cannot keep the rest
// loaded. Closing an already-closed registry returns nil.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	records := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, rec)
	}
	r.records = make(map[int64]*record)
	r.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].id < records[j].id })

	var errs []error
	for _, rec := range records {
		if err := r.backend.ReleaseSession(rec.session); err != nil {
			errs = append(errs, fmt.Errorf("session %d (%s): %w", rec.session, rec.path, err))
		}
	}

	r.logger.Info().Int("sessions", len(records)).Msg("closed saved model registry")
	return errors.Join(errs...)
}

// ActiveSessions returns the number of native sessions currently loaded
// in the backend.
func (r *Registry) ActiveSessions() int {
	return r.backend.ActiveSessions()
}
