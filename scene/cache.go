package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"
)

// State is the load state of a scene.
type State int

// Scene states. Transitions are Unloaded -> Loading -> Loaded or Failed.
const (
	Unloaded State = iota
	Loading
	Loaded
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseFunc asks the backend to parse fetched scene data. It returns the
// backend's scene info, which may be nil.
type ParseFunc func(ctx context.Context, name string, data []byte) (json.RawMessage, error)

// Listener receives the info of every newly parsed scene.
type Listener func(name string, info json.RawMessage)

// Normalize returns the canonical form of a scene name.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

// entry is the cache record of one scene.
type entry struct {
	state State
	info  json.RawMessage
	err   error
}

// Cache loads each scene name at most once. It is safe for concurrent use.
type Cache struct {
	mu        sync.Mutex
	fetch     Fetcher
	parse     ParseFunc
	log       *slog.Logger
	notify    func()
	scenes    map[string]*entry
	pending   []string
	listeners []Listener
	wg        sync.WaitGroup

	// Statistics
	fetches  atomic.Uint64
	parses   atomic.Uint64
	failures atomic.Uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNotify sets a callback invoked after every completed load, success
// or failure. The scheduler uses it to request a frame.
func WithNotify(fn func()) Option {
	return func(c *Cache) {
		c.notify = fn
	}
}

// New creates a cache that fetches with f and parses with parse.
func New(f Fetcher, parse ParseFunc, opts ...Option) *Cache {
	c := &Cache{
		fetch:  f,
		parse:  parse,
		log:    slog.New(slog.DiscardHandler),
		scenes: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request marks name as loading and queues it for the next Drain. It
// reports whether the name was new; known names are left alone, including
// failed ones.
func (c *Cache) Request(name string) bool {
	name = Normalize(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.scenes[name]; ok {
		return false
	}
	c.scenes[name] = &entry{state: Loading}
	c.pending = append(c.pending, name)
	return true
}

// Pending reports whether requested scenes are waiting for Drain.
func (c *Cache) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0
}

// Drain starts loading every queued scene. Loads run on their own
// goroutines; Wait blocks until they finish.
func (c *Cache) Drain(ctx context.Context) {
	c.mu.Lock()
	names := c.pending
	c.pending = nil
	c.wg.Add(len(names))
	c.mu.Unlock()

	for _, name := range names {
		go c.load(ctx, name)
	}
}

func (c *Cache) load(ctx context.Context, name string) {
	defer c.wg.Done()

	c.log.Debug("scene: fetching", "name", name)
	info, err := c.fetchAndParse(ctx, name)

	c.mu.Lock()
	e := c.scenes[name]
	if err != nil {
		e.state = Failed
		e.err = err
	} else {
		e.state = Loaded
		e.info = info
	}
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	if err != nil {
		c.failures.Add(1)
		c.log.Warn("scene: load failed", "name", name, "err", err)
	} else {
		c.log.Debug("scene: loaded", "name", name)
		if info != nil {
			for _, l := range listeners {
				l(name, info)
			}
		}
	}
	if c.notify != nil {
		c.notify()
	}
}

func (c *Cache) fetchAndParse(ctx context.Context, name string) (json.RawMessage, error) {
	c.fetches.Add(1)
	data, err := c.fetch.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("scene: fetch %q: %w", name, err)
	}
	c.parses.Add(1)
	info, err := c.parse(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("scene: parse %q: %w", name, err)
	}
	return info, nil
}

// State returns the load state of name.
func (c *Cache) State(name string) State {
	name = Normalize(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.scenes[name]; ok {
		return e.state
	}
	return Unloaded
}

// Ready reports whether viewers of name can render: the scene is Loaded
// or Failed.
func (c *Cache) Ready(name string) bool {
	s := c.State(name)
	return s == Loaded || s == Failed
}

// Info returns the backend info of a loaded scene.
func (c *Cache) Info(name string) (json.RawMessage, bool) {
	name = Normalize(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.scenes[name]
	if !ok || e.state != Loaded {
		return nil, false
	}
	return e.info, true
}

// Err returns the load error of a failed scene.
func (c *Cache) Err(name string) error {
	name = Normalize(name)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.scenes[name]; ok {
		return e.err
	}
	return nil
}

// AddListener registers l for every future parse and calls it at once for
// each scene already loaded with info.
func (c *Cache) AddListener(l Listener) {
	type loaded struct {
		name string
		info json.RawMessage
	}

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	var done []loaded
	for name, e := range c.scenes {
		if e.state == Loaded && e.info != nil {
			done = append(done, loaded{name, e.info})
		}
	}
	c.mu.Unlock()

	for _, d := range done {
		l(d.name, d.info)
	}
}

// Wait blocks until every drained load has completed.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Scenes   int
	Fetches  uint64
	Parses   uint64
	Failures uint64
}

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	n := len(c.scenes)
	c.mu.Unlock()
	return Stats{
		Scenes:   n,
		Fetches:  c.fetches.Load(),
		Parses:   c.parses.Load(),
		Failures: c.failures.Load(),
	}
}
