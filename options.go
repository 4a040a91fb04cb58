package viewmux

import (
	"os"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/viewmux/scene"
)

// Option configures a Mux during creation.
//
// Example:
//
//	m, err := viewmux.New(backend,
//	    viewmux.WithWindow(window),
//	    viewmux.WithFetcher(scene.HTTPFetcher{BaseURL: "https://example.com/models"}),
//	)
type Option func(*options)

// options holds optional configuration for Mux creation.
type options struct {
	cfg     Config
	clock   Clock
	window  gpucontext.WindowProvider
	fetcher scene.Fetcher
}

// defaultOptions returns the default mux options.
func defaultOptions() options {
	return options{
		cfg:     DefaultConfig(),
		clock:   nil, // SystemClock(cfg.FrameInterval) once cfg is final
		window:  gpucontext.NullWindowProvider{},
		fetcher: scene.FSFetcher{FS: os.DirFS(".")},
	}
}

// WithConfig replaces the default thresholds.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithClock sets the frame and idle clock. Tests use it to drive the
// scheduler deterministically.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithWindow sets the window the viewers live in. Its scale factor is the
// device pixel ratio, and it is asked to redraw after every presented
// realtime frame.
func WithWindow(w gpucontext.WindowProvider) Option {
	return func(o *options) {
		if w != nil {
			o.window = w
		}
	}
}

// WithFetcher sets how raw scene data is retrieved. The default reads
// scene names as paths relative to the working directory.
func WithFetcher(f scene.Fetcher) Option {
	return func(o *options) {
		if f != nil {
			o.fetcher = f
		}
	}
}
