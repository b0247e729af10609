package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrRegistryClosed is returned by GetOrCreate after Shutdown
var ErrRegistryClosed = errors.New("session registry is shut down")

// Registry maps each owner to exactly one live remote sandbox.
//
// Lookups and inserts for the same owner are serialized: concurrent
// GetOrCreate calls share a single remote list/connect/create sequence, so a
// second sandbox is never created for an owner that already has one in flight.
type Registry struct {
	client  Client
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	flights singleflight.Group
}

type session struct {
	handle   *Handle
	lastUsed time.Time
	// closing is non-nil while the sandbox is being killed and is closed
	// when the kill returns.
	closing chan struct{}
}

// errSessionClosing makes GetOrCreate wait for an in-flight close
var errSessionClosing = errors.New("session is closing")

// RegistryOption defines a functional option for Registry
type RegistryOption func(*Registry)

// WithClock replaces the time source used for creation and idle tracking
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates an empty registry backed by client
func NewRegistry(logger *zap.Logger, client Client, metrics *Metrics, opts ...RegistryOption) *Registry {
	r := &Registry{
		client:   client,
		logger:   logger.With(zap.String("component", "registry")),
		metrics:  metrics,
		now:      time.Now,
		sessions: make(map[string]*session),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Client returns the remote client sessions are bound to
func (r *Registry) Client() Client {
	return r.client
}

// GetOrCreate returns the owner's sandbox, attaching to one the remote service
// already has for the owner or creating a new one when none exists. A call
// racing a close of the same owner waits for the close to finish.
func (r *Registry) GetOrCreate(ctx context.Context, ownerID string) (*Handle, error) {
	if ownerID == "" {
		return nil, errors.New("owner id must not be empty")
	}

	for {
		h, closing, err := r.current(ownerID)
		if err != nil {
			return nil, err
		}
		if h != nil {
			return h, nil
		}
		if closing != nil {
			select {
			case <-closing:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		v, err, _ := r.flights.Do(ownerID, func() (any, error) {
			return r.open(ctx, ownerID)
		})
		if errors.Is(err, errSessionClosing) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return v.(*Handle), nil
	}
}

// current returns the owner's live handle, or the channel of a close in
// progress. It fails once the registry is shut down.
func (r *Registry) current(ownerID string) (*Handle, <-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, nil, ErrRegistryClosed
	}
	s, ok := r.sessions[ownerID]
	if !ok {
		return nil, nil, nil
	}
	if s.closing != nil {
		return nil, s.closing, nil
	}
	s.lastUsed = r.now()
	return s.handle, nil, nil
}

// open runs inside the owner's flight
func (r *Registry) open(ctx context.Context, ownerID string) (*Handle, error) {
	// Another flight may have finished, or a close or shutdown started,
	// since the caller looked
	h, closing, err := r.current(ownerID)
	if err != nil {
		return nil, err
	}
	if h != nil {
		return h, nil
	}
	if closing != nil {
		return nil, errSessionClosing
	}

	h, created, err := r.acquire(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		// Only a sandbox made by this call is ours to kill; an attached one
		// belongs to the owner.
		if created {
			r.release(ctx, ownerID, h)
		}
		return nil, ErrRegistryClosed
	}
	r.sessions[ownerID] = &session{handle: h, lastUsed: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.setActive(n)
	return h, nil
}

func (r *Registry) acquire(ctx context.Context, ownerID string) (*Handle, bool, error) {
	existing, err := r.client.List(ctx, map[string]string{MetadataOwnerKey: ownerID})
	r.metrics.remoteCall("list", err)
	if err != nil {
		r.logger.Error("failed to list sandboxes", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, false, fmt.Errorf("%w: list sandboxes for owner %s: %w", ErrRemoteUnavailable, ownerID, err)
	}

	if len(existing) > 0 {
		info := existing[0]
		h, connErr := r.client.Connect(ctx, info.SandboxID)
		r.metrics.remoteCall("connect", connErr)
		if connErr != nil {
			r.logger.Error("failed to connect to sandbox",
				zap.String("owner_id", ownerID),
				zap.String("sandbox_id", info.SandboxID),
				zap.Error(connErr))
			return nil, false, fmt.Errorf("%w: connect to sandbox %s: %w", ErrRemoteUnavailable, info.SandboxID, connErr)
		}

		h.OwnerID = ownerID
		if h.CreatedAt.IsZero() {
			h.CreatedAt = createdAt(info)
		}

		r.logger.Info("connected to existing sandbox",
			zap.String("owner_id", ownerID),
			zap.String("sandbox_id", h.ID))
		return h, false, nil
	}

	now := r.now().UTC()
	h, err := r.client.Create(ctx, map[string]string{
		MetadataOwnerKey:     ownerID,
		MetadataCreatedAtKey: now.Format(time.RFC3339),
	})
	r.metrics.remoteCall("create", err)
	if err != nil {
		r.logger.Error("failed to create sandbox", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, false, fmt.Errorf("%w: create sandbox for owner %s: %w", ErrRemoteUnavailable, ownerID, err)
	}

	h.OwnerID = ownerID
	h.CreatedAt = now

	r.logger.Info("created sandbox",
		zap.String("owner_id", ownerID),
		zap.String("sandbox_id", h.ID),
		zap.String("template_id", h.TemplateID))
	return h, true, nil
}

func createdAt(info Info) time.Time {
	if raw, ok := info.Metadata[MetadataCreatedAtKey]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return info.StartedAt
}

// Close terminates the owner's sandbox and forgets it. Closing an owner
// without a session is a no-op. The entry is kept when termination fails so
// the close can be retried.
func (r *Registry) Close(ctx context.Context, ownerID string) error {
	_, err := r.closeIf(ctx, ownerID, nil)
	return err
}

// closeIf closes the owner's session when cond (evaluated under the lock)
// reports true. A nil cond always closes. While the kill runs the session is
// marked closing, so GetOrCreate neither hands out nor replaces it.
func (r *Registry) closeIf(ctx context.Context, ownerID string, cond func(*session) bool) (bool, error) {
	r.mu.Lock()
	s, ok := r.sessions[ownerID]
	for ok && s.closing != nil {
		// Another close of this owner is in flight
		wait := s.closing
		r.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return false, ctx.Err()
		}
		r.mu.Lock()
		s, ok = r.sessions[ownerID]
	}
	if !ok || (cond != nil && !cond(s)) {
		r.mu.Unlock()
		return false, nil
	}
	done := make(chan struct{})
	s.closing = done
	r.mu.Unlock()

	err := r.client.Kill(ctx, s.handle)
	r.metrics.remoteCall("kill", err)

	r.mu.Lock()
	s.closing = nil
	if err == nil {
		if cur, ok := r.sessions[ownerID]; ok && cur == s {
			delete(r.sessions, ownerID)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	close(done)

	if err != nil {
		return false, fmt.Errorf("kill sandbox %s for owner %s: %w", s.handle.ID, ownerID, err)
	}

	r.metrics.setActive(n)
	r.logger.Info("closed sandbox",
		zap.String("owner_id", ownerID),
		zap.String("sandbox_id", s.handle.ID))
	return true, nil
}

// ListAll returns every sandbox the remote service reports for the
// credential, including ones this process never created.
func (r *Registry) ListAll(ctx context.Context) ([]Info, error) {
	infos, err := r.client.List(ctx, nil)
	r.metrics.remoteCall("list", err)
	if err != nil {
		return nil, fmt.Errorf("list sandboxes: %w", err)
	}
	return infos, nil
}

// Shutdown terminates every tracked sandbox concurrently and empties the
// registry. Individual termination failures are logged and do not stop the
// others.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	snapshot := r.sessions
	r.sessions = make(map[string]*session)
	r.closed = true
	pending := make(map[string]bool, len(snapshot))
	for ownerID, s := range snapshot {
		pending[ownerID] = s.closing != nil
	}
	r.mu.Unlock()

	r.metrics.setActive(0)
	r.logger.Info("closing all sandboxes", zap.Int("count", len(snapshot)))

	var g errgroup.Group
	for ownerID, s := range snapshot {
		if pending[ownerID] {
			// Its close is already killing it
			continue
		}
		g.Go(func() error {
			r.release(ctx, ownerID, s.handle)
			return nil
		})
	}
	_ = g.Wait()
}

// release kills h, logging instead of returning failures
func (r *Registry) release(ctx context.Context, ownerID string, h *Handle) {
	err := r.client.Kill(ctx, h)
	r.metrics.remoteCall("kill", err)
	if err != nil {
		r.logger.Warn("failed to close sandbox",
			zap.String("owner_id", ownerID),
			zap.String("sandbox_id", h.ID),
			zap.Error(err))
		return
	}
	r.logger.Info("closed sandbox",
		zap.String("owner_id", ownerID),
		zap.String("sandbox_id", h.ID))
}

// EvictIdle closes sessions unused for longer than maxIdle and returns how
// many were closed. Sessions whose termination fails stay registered.
func (r *Registry) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	idle := func(s *session) bool { return s.lastUsed.Before(cutoff) }

	r.mu.Lock()
	var candidates []string
	for ownerID, s := range r.sessions {
		if idle(s) {
			candidates = append(candidates, ownerID)
		}
	}
	r.mu.Unlock()

	evicted := 0
	for _, ownerID := range candidates {
		closed, err := r.closeIf(ctx, ownerID, idle)
		if err != nil {
			r.logger.Warn("failed to evict idle sandbox", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		if closed {
			evicted++
		}
	}

	r.metrics.evicted(evicted)
	if evicted > 0 {
		r.logger.Info("evicted idle sandboxes", zap.Int("count", evicted), zap.Duration("max_idle", maxIdle))
	}
	return evicted
}

// Len returns the number of tracked sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Owners returns the owners with a live session, sorted
func (r *Registry) Owners() []string {
	r.mu.Lock()
	owners := make([]string, 0, len(r.sessions))
	for ownerID := range r.sessions {
		owners = append(owners, ownerID)
	}
	r.mu.Unlock()

	sort.Strings(owners)
	return owners
}
