// Command viewmuxdemo drives a few viewers through the scheduler against
// the in-memory backend and saves the last snapshot of one of them.
package main

import (
	"context"
	"flag"
	"image/png"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gogpu/viewmux"
	"github.com/gogpu/viewmux/render"
	"github.com/gogpu/viewmux/rpc"
	"github.com/gogpu/viewmux/rpc/rpctest"
	"github.com/gogpu/viewmux/scene"
	"github.com/gogpu/viewmux/surface"
)

func main() {
	var (
		backend = flag.String("backend", "", "backend name (default: best available)")
		envFile = flag.String("env", "", "dotenv file with VIEWMUX_* settings")
		scenes  = flag.String("scenes", "", "directory to load scenes from (default: synthetic scenes)")
		viewers = flag.Int("viewers", 3, "number of viewers")
		output  = flag.String("output", "snapshot.png", "output file")
		verbose = flag.Bool("v", false, "log scheduler decisions")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	viewmux.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := viewmux.LoadConfig(files...)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rpc.Register(rpc.Software, func() rpc.Backend { return rpctest.New() })
	b, err := rpc.Open(*backend)
	if err != nil {
		log.Fatalf("Failed to open backend: %v (available: %s)", err, strings.Join(rpc.Available(), ", "))
	}

	var fetcher scene.Fetcher = scene.FetcherFunc(func(_ context.Context, name string) ([]byte, error) {
		return []byte(name), nil
	})
	if *scenes != "" {
		fetcher = scene.FSFetcher{FS: os.DirFS(*scenes)}
	}

	m, err := viewmux.New(b, viewmux.WithConfig(cfg), viewmux.WithFetcher(fetcher))
	if err != nil {
		log.Fatalf("Failed to create mux: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	displays := make([]*surface.Placeholder, *viewers)
	for i := range displays {
		displays[i] = surface.NewPlaceholder(render.Resolution{Width: 320, Height: 240})
		desc := viewmux.SceneDescriptor{
			SceneName: "cube.glb",
			Camera:    viewmux.Camera{Yaw: float64(i) * 0.5, Distance: 5},
		}
		if err := m.RenderViewer(viewerID(i), displays[i], desc); err != nil {
			log.Fatalf("RenderViewer: %v", err)
		}
	}

	// Orbit the first viewer as a user dragging the camera would.
	for frame := range 60 {
		desc := viewmux.SceneDescriptor{
			SceneName:         "cube.glb",
			Camera:            viewmux.Camera{Yaw: float64(frame) * 0.05, Distance: 5},
			LatestInteraction: time.Now(),
		}
		if err := m.RenderViewer(viewerID(0), displays[0], desc, viewmux.Interactive()); err != nil {
			log.Fatalf("RenderViewer: %v", err)
		}
		time.Sleep(cfg.FrameInterval)
	}
	time.Sleep(2 * cfg.QuietPeriod)

	for _, v := range m.DebugDumpViewers() {
		log.Printf("viewer %s: %s", v.ID, v.State)
	}

	last := displays[len(displays)-1]
	for _, el := range last.Elements() {
		c, ok := el.(*surface.Canvas)
		if !ok || c.Bitmap() == nil {
			continue
		}
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("Failed to create output: %v", err)
		}
		defer f.Close()
		if err := png.Encode(f, c.Bitmap()); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Snapshot saved to %s (%v)", *output, c.Resolution())
		return
	}
	log.Printf("Viewer %s shows no canvas, nothing saved", viewerID(len(displays)-1))
}

func viewerID(i int) string {
	return "viewer-" + strconv.Itoa(i)
}
