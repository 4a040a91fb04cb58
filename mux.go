package viewmux

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/viewmux/lease"
	"github.com/gogpu/viewmux/render"
	"github.com/gogpu/viewmux/rpc"
	"github.com/gogpu/viewmux/scene"
	"github.com/gogpu/viewmux/surface"
)

// Errors returned by Mux.
var (
	// ErrClosed is returned by operations on a closed Mux, and settles
	// every operation still queued when it closes.
	ErrClosed = errors.New("viewmux: mux is closed")

	// ErrNilDisplay is returned by RenderViewer for a nil display.
	ErrNilDisplay = errors.New("viewmux: nil display")
)

// Mux multiplexes viewers onto one render backend.
//
// All scheduler state is guarded by one mutex. Frame and idle ticks run
// under it, and so do viewer operations, which release it only while they
// wait for the backend, a lease or a fence. The backend therefore sees one
// logical thread of control, as it would from a single-threaded host.
type Mux struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg    Config
	policy render.Policy
	clock  Clock
	window gpucontext.WindowProvider
	log    *slog.Logger

	client  *rpc.Client
	scenes  *scene.Cache
	run     runner
	targets *lease.Manager[render.Target]
	locks   *lease.Manager[string]

	viewers *registry
	arbiter *arbiter

	// live is the shared realtime surface. liveOwner is the viewer in
	// Realtime state; realtimeID is the viewer holding or about to take
	// the slot.
	live       *surface.Live
	liveOwner  *viewer
	realtimeID string

	ctx    context.Context
	cancel context.CancelFunc

	initialized bool
	closed      bool

	// destroyed is set once the backend context has been torn down and
	// must be set up again before the next command.
	destroyed bool

	// fence is the outstanding GPU sync, if any.
	fence rpc.Fence

	framePending bool
	frameGen     uint64
	frameTimer   Timer

	idleStage int
	idleGen   uint64
	idleTimer Timer
	idleFast  bool

	polls []func() bool

	// active counts operations that hold or are about to take mu.
	// Operations waiting on a future do not count.
	active int
}

// New creates a scheduler for backend b. Nothing is rendered until Start.
func New(b rpc.Backend, opts ...Option) (*Mux, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.clock == nil {
		o.clock = SystemClock(o.cfg.FrameInterval)
	}

	log := Logger()
	client, err := rpc.NewClient(b, log)
	if err != nil {
		return nil, err
	}

	m := &Mux{
		cfg:     o.cfg,
		policy:  o.cfg.Policy(),
		clock:   o.clock,
		window:  o.window,
		log:     log,
		client:  client,
		viewers: newRegistry(),
		arbiter: newArbiter(o.cfg),
	}
	m.cond = sync.NewCond(&m.mu)
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.run = runner{m}
	m.targets = lease.NewManager[render.Target]("target", m.run, log)
	m.locks = lease.NewManager[string]("viewer", m.run, log)
	m.scenes = scene.New(o.fetcher, client.LoadScene,
		scene.WithLogger(log),
		scene.WithNotify(m.sceneLoaded),
	)
	return m, nil
}

// Start sets up the backend context and begins ticking. ctx bounds every
// backend call and scene fetch until Close.
func (m *Mux) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.initialized {
		return nil
	}
	m.cancel()
	m.ctx, m.cancel = context.WithCancel(ctx)

	if _, err := m.liveSurface(); err != nil {
		return err
	}
	m.initialized = true
	m.log.Info("viewmux: started", "viewers", m.viewers.len())
	m.requestFrame()
	return nil
}

// Close stops the scheduler. Queued operations settle with ErrClosed,
// running ones are waited for, every viewer is emptied and the backend
// context is destroyed.
func (m *Mux) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	m.frameGen++
	m.framePending = false
	if m.frameTimer != nil {
		m.frameTimer.Stop()
	}
	m.stopIdle()

	m.locks.Abort(ErrClosed)
	m.targets.Abort(ErrClosed)
	polls := m.polls
	m.polls = nil
	for _, p := range polls {
		p()
	}
	m.waitOps()

	for _, v := range m.viewers.all() {
		m.toEmpty(v)
	}
	if m.live != nil {
		m.live.Destroy()
		m.live = nil
	}
	m.cancel()
	wasUp := m.initialized && !m.destroyed
	m.mu.Unlock()

	m.scenes.Wait()
	if !wasUp {
		return nil
	}
	m.log.Info("viewmux: closed")
	return m.client.Backend().Destroy()
}

// RenderOption modifies a single RenderViewer request.
type RenderOption func(*renderOptions)

type renderOptions struct {
	interactive bool
}

// Interactive claims the realtime slot for the viewer on the next tick.
func Interactive() RenderOption {
	return func(o *renderOptions) {
		o.interactive = true
	}
}

// RenderViewer creates or updates viewer id to show desc in d.
//
// A new display re-parents the viewer's element; it is re-rendered only if
// the display size differs. A descriptor that is not Equal to the current
// one marks the viewer dirty; an equal one changes nothing. The
// descriptor's scene is loaded if it has not been seen.
func (m *Mux) RenderViewer(id string, d surface.Display, desc SceneDescriptor, opts ...RenderOption) error {
	if d == nil {
		return ErrNilDisplay
	}
	var ro renderOptions
	for _, opt := range opts {
		opt(&ro)
	}
	// The cache keys scenes by their NFC name; render must send the same.
	desc.SceneName = scene.Normalize(desc.SceneName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	now := m.clock.Now()

	v, ok := m.viewers.get(id)
	if !ok {
		v = newViewer(id, d, desc)
		m.viewers.add(v)
		m.log.Debug("viewmux: new viewer", "viewer", id, "resolution", v.res)
		m.markDirty(v)
	}

	if m.scenes.Request(desc.SceneName) {
		m.requestFrame()
	}

	if v.display != d {
		if el := v.state.element(); el != nil {
			surface.Attach(d, el)
		}
		v.display = d
	}
	if res := d.Size(); res != v.res {
		v.res = res
		m.markDirty(v)
	}
	if !v.desc.Equal(desc, m.cfg.DescriptorEpsilon) {
		v.desc = desc
		m.markDirty(v)
	}

	m.arbiter.observe(id, desc.LatestInteraction, now)
	if ro.interactive {
		m.arbiter.claim(id, now)
		m.requestFrame()
	}
	return nil
}

// RemoveViewer destroys everything viewer id owns and forgets it. It
// reports whether the viewer existed. Resources are released once any
// operation in flight on the viewer finishes.
func (m *Mux) RemoveViewer(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.viewers.remove(id)
	if !ok {
		return false
	}
	v.removed = true
	v.dirty = false
	m.arbiter.forget(id)
	if m.closed {
		m.toEmpty(v)
		return true
	}
	lease.Acquire(m.locks, id, func(lease.Lease[string]) (struct{}, error) {
		m.toEmpty(v)
		return struct{}{}, nil
	})
	return true
}

// QueryResolution returns the display resolution of viewer id.
func (m *Mux) QueryResolution(id string) (render.Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.viewers.get(id)
	if !ok {
		return render.Resolution{}, false
	}
	return v.res, true
}

// AddSceneInfoListener calls fn with the backend info of every newly
// parsed scene, and at once for every scene already parsed.
func (m *Mux) AddSceneInfoListener(fn func(name string, info json.RawMessage)) {
	m.scenes.AddListener(fn)
}

// DebugDumpViewers returns the state of every viewer in creation order.
func (m *Mux) DebugDumpViewers() []ViewerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ViewerInfo, 0, m.viewers.len())
	for _, v := range m.viewers.order {
		out = append(out, ViewerInfo{ID: v.id, State: v.state.tag()})
	}
	return out
}

// NotifyResize re-reads every display size and marks changed viewers dirty.
// Hosts call it when their layout changes.
func (m *Mux) NotifyResize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.viewers.order {
		if res := v.display.Size(); res != v.res {
			v.res = res
			m.markDirty(v)
		}
	}
}

// NotifyScaleChanged marks every viewer dirty. Hosts call it when the
// device pixel ratio changes.
func (m *Mux) NotifyScaleChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, v := range m.viewers.order {
		m.markDirty(v)
	}
}

func (m *Mux) markDirty(v *viewer) {
	v.dirty = true
	m.requestFrame()
}

func (m *Mux) sceneLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestFrame()
}

// requestFrame arms a frame tick unless one is pending, and restarts idle
// staging.
func (m *Mux) requestFrame() {
	if m.closed {
		return
	}
	if !m.framePending {
		m.framePending = true
		m.frameGen++
		gen := m.frameGen
		m.frameTimer = m.clock.AfterFrame(func() { m.frameTick(gen) })
	}
	m.requestIdle()
}

func (m *Mux) frameTick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.frameGen || !m.framePending {
		return
	}
	m.framePending = false
	m.frameTimer = nil
	if !m.initialized || m.closed {
		return
	}
	now := m.clock.Now()

	if m.destroyed || m.client.Backend().ContextLost() {
		m.recoverContext()
	}

	if m.scenes.Pending() {
		m.scenes.Drain(m.ctx)
	}

	polls := m.polls
	m.polls = nil
	for _, p := range polls {
		if p() {
			m.polls = append(m.polls, p)
		}
	}
	if len(m.polls) > 0 {
		m.requestFrame()
	}

	claim := m.arbiter.claimed(now)

	var (
		dispatch []*viewer
		ids      []string
	)
	for _, v := range m.viewers.order {
		claimed := v.id == claim && v.state.tag() != Realtime
		if !v.dirty && !claimed {
			continue
		}
		if m.locks.Held(v.id) || !m.ready(v) {
			m.requestFrame()
			continue
		}
		v.dirty = false
		v.prevRender, v.lastRender = v.lastRender, now
		m.arbiter.record(v.id, now)
		dispatch = append(dispatch, v)
		ids = append(ids, v.id)
	}

	// A claim on the slot by another viewer demotes the resident one even
	// if the claimant cannot render yet.
	var handoff *lease.Future[struct{}]
	if claim != "" && m.realtimeID != "" && m.realtimeID != claim {
		if cur, ok := m.viewers.get(m.realtimeID); ok {
			handoff = m.demote(cur)
		}
	}

	promote := m.arbiter.decide(now, m.realtimeID, ids)
	if promote != "" && handoff == nil && m.realtimeID != "" {
		if cur, ok := m.viewers.get(m.realtimeID); ok {
			handoff = m.demote(cur)
		}
	}

	for _, v := range dispatch {
		if v.id == promote {
			m.realtimeID = v.id
			m.promote(v, handoff)
		} else {
			m.refreshOp(v)
		}
	}

	m.demoteQuiet(now)
}

// ready reports whether the scene of v has finished loading, successfully
// or not.
func (m *Mux) ready(v *viewer) bool {
	return m.scenes.Ready(v.desc.SceneName)
}

// viewerOp runs fn under the lease of v. A failed operation leaves the
// viewer Empty.
func (m *Mux) viewerOp(v *viewer, name string, fn func() error) *lease.Future[struct{}] {
	return lease.Acquire(m.locks, v.id, func(lease.Lease[string]) (struct{}, error) {
		if v.removed {
			return struct{}{}, nil
		}
		err := fn()
		if err != nil && !errors.Is(err, ErrClosed) {
			m.log.Warn("viewmux: viewer operation failed", "viewer", v.id, "op", name, "err", err)
			m.toEmpty(v)
		}
		return struct{}{}, err
	})
}

func (m *Mux) refreshOp(v *viewer) {
	m.viewerOp(v, "refresh", func() error {
		return m.refresh(v)
	})
}

// demote moves v from Realtime back to Canvas.
func (m *Mux) demote(v *viewer) *lease.Future[struct{}] {
	m.log.Debug("viewmux: demoting realtime viewer", "viewer", v.id)
	return m.viewerOp(v, "demote", func() error {
		if v.state.tag() != Realtime {
			return nil
		}
		return m.transition(v, Canvas)
	})
}

// promote moves v to Realtime once handoff, the demotion of the previous
// holder, has finished.
func (m *Mux) promote(v *viewer, handoff *lease.Future[struct{}]) {
	m.log.Debug("viewmux: promoting viewer", "viewer", v.id)
	op := m.viewerOp(v, "promote", func() error {
		if handoff != nil {
			if _, err := await(m, handoff); errors.Is(err, ErrClosed) {
				return err
			}
		}
		if m.realtimeID != v.id {
			return m.refresh(v)
		}
		err := m.transition(v, Realtime)
		if errors.Is(err, errSlotBusy) {
			m.realtimeID = ""
			return m.refresh(v)
		}
		return err
	})
	// Removed or failed viewers give the reservation back.
	op.OnSettle(func() {
		if m.realtimeID == v.id && m.liveOwner != v {
			m.realtimeID = ""
		}
	})
}

// demoteQuiet demotes the realtime viewer once it has not rendered for
// the quiet period.
func (m *Mux) demoteQuiet(now time.Time) {
	v := m.liveOwner
	if v == nil || v.removed || m.realtimeID != v.id || m.locks.Held(v.id) {
		return
	}
	if now.Sub(v.lastRender) > m.cfg.QuietPeriod {
		m.demote(v)
	}
}

// recoverContext rebuilds the backend context after a loss or an idle
// teardown and re-renders every viewer that held GPU-backed state. Empty
// viewers are marked dirty so the current tick renders them again; frozen
// images do not depend on the context and are left alone.
func (m *Mux) recoverContext() {
	if _, err := m.liveSurface(); err != nil {
		m.log.Warn("viewmux: backend recovery failed", "err", err)
		return
	}
	for _, v := range m.viewers.order {
		switch v.state.tag() {
		case Realtime:
			m.demote(v)
		case Canvas:
			m.refreshOp(v)
		case Empty:
			v.dirty = true
		}
	}
}

// liveSurface returns the shared live surface, first tearing down a lost
// context and setting up a fresh one if needed.
func (m *Mux) liveSurface() (*surface.Live, error) {
	b := m.client.Backend()
	if b.ContextLost() && !m.destroyed {
		m.log.Info("viewmux: backend context lost, recreating")
		m.logBackendError("freeResources", m.client.FreeResources(m.ctx, rpc.Tiers{Targets: true, Scenes: true, Globals: true}))
		if err := b.Destroy(); err != nil {
			m.log.Warn("viewmux: backend destroy failed", "err", err)
		}
		m.destroyed = true
	}
	if m.destroyed {
		if m.live != nil {
			m.live.Destroy()
		}
		m.live = nil
		m.fence = nil
	}
	if m.live != nil {
		return m.live, nil
	}

	if err := b.Setup(); err != nil {
		m.destroyed = true
		return nil, fmt.Errorf("viewmux: backend setup: %w", err)
	}
	if err := m.client.Init(m.ctx); err != nil {
		m.log.Warn("viewmux: backend init failed", "err", err)
	}
	m.destroyed = false
	m.live = surface.NewLive()
	m.log.Info("viewmux: backend context created")
	return m.live, nil
}

// waitOps blocks until no operation holds or is about to take mu. It must
// be called with mu held.
func (m *Mux) waitOps() {
	for m.active > 0 {
		m.cond.Wait()
	}
}

// unlocked runs fn with mu released.
func (m *Mux) unlocked(fn func()) {
	m.mu.Unlock()
	defer m.mu.Lock()
	fn()
}

// call runs a backend call with mu released.
func (m *Mux) call(fn func(ctx context.Context, c *rpc.Client) error) error {
	var err error
	m.unlocked(func() { err = fn(m.ctx, m.client) })
	return err
}

// await waits for f with mu released. It must be called from an operation
// running under mu.
func await[T any](m *Mux, f *lease.Future[T]) (T, error) {
	if !f.Settled() {
		if m.closed {
			var zero T
			return zero, ErrClosed
		}
		m.active--
		m.cond.Broadcast()
		f.OnSettle(func() { m.active++ })
		m.unlocked(func() { <-f.Done() })
	}
	return f.Result()
}

// runner runs lease operations under the Mux lock and polls waiters on
// every frame tick.
type runner struct {
	m *Mux
}

func (r runner) Go(fn func()) {
	m := r.m
	m.active++
	go func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		defer func() {
			m.active--
			m.cond.Broadcast()
		}()
		fn()
	}()
}

func (r runner) Poll(fn func() bool) {
	if r.m.closed {
		return
	}
	r.m.polls = append(r.m.polls, fn)
	r.m.requestFrame()
}
