// Package viewmux multiplexes many 3D viewports onto one render backend.
//
// # Overview
//
// A host page may show dozens of views of 3D scenes while the backend
// behind them owns a single rendering context, reached through a JSON
// command protocol (see package rpc). viewmux decides, frame by frame,
// which viewers are rendered, how, and when their resources are released.
//
// Each viewer is in one of four states:
//
//   - Empty: nothing is shown and nothing is held.
//   - Canvas: a static snapshot read back from the backend.
//   - Image: a frozen, compressed copy of the snapshot. It needs no
//     backend resources at all.
//   - Realtime: the shared live surface, presented directly by the
//     backend. At most one viewer is Realtime at any time.
//
// # Quick Start
//
//	backend, name := rpc.Best()
//	m, err := viewmux.New(backend,
//	    viewmux.WithFetcher(scene.HTTPFetcher{BaseURL: "https://example.com/models/"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	m.RenderViewer("front", display, viewmux.SceneDescriptor{SceneName: "cube.fbx"})
//
// # Scheduling
//
// RenderViewer only records what a viewer should show. The work happens on
// frame ticks: dirty viewers whose scene is loaded are rendered, and the
// viewer being interacted with is promoted to Realtime. A viewer claims the
// slot explicitly with Interactive, implicitly through two recent
// interaction timestamps in a row, or by simply rendering much more often
// than the resident realtime viewer.
//
// Idle ticks degrade what is no longer changing. The realtime viewer is
// demoted after a quiet period, canvases are frozen to images, and once
// nothing GPU-backed remains the backend is asked to free its render
// targets, then its scenes, and finally its whole context. The next frame
// tick brings the context back on demand.
//
// # Concurrency
//
// Mux methods are safe for concurrent use. Internally every viewer
// transition runs under a per-viewer lease (see package lease), and the
// snapshot and realtime render targets are leased the same way, so the
// backend never sees interleaved commands for one target.
//
// # Configuration
//
// Thresholds live in Config. LoadConfig reads overrides from dotenv files
// and VIEWMUX_* environment variables.
//
// # Logging
//
// viewmux is silent by default. Use SetLogger to route its structured
// records to any slog.Handler.
package viewmux
