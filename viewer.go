package viewmux

import (
	"fmt"
	"time"

	"github.com/gogpu/viewmux/render"
	"github.com/gogpu/viewmux/surface"
)

// State is the representation a viewer currently shows.
type State int

// Viewer states.
const (
	// Empty holds no resources.
	Empty State = iota

	// Canvas shows a static snapshot read back from the backend.
	Canvas

	// Image shows a frozen bitmap that needs no backend resources.
	Image

	// Realtime shows the shared live surface. At most one viewer is
	// Realtime at any time.
	Realtime
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Canvas:
		return "canvas"
	case Image:
		return "image"
	case Realtime:
		return "realtime"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// viewerState is the tagged representation of a viewer. Each variant owns
// the surface it shows.
type viewerState interface {
	tag() State

	// element returns the visual placed in the viewer's display, or nil.
	element() surface.Element
}

type emptyState struct{}

type canvasState struct {
	canvas *surface.Canvas
}

type imageState struct {
	image *surface.Image
}

type realtimeState struct {
	live *surface.Live

	// previous is the canvas shown before promotion, kept for a quick
	// demotion.
	previous *surface.Canvas
}

func (emptyState) tag() State               { return Empty }
func (emptyState) element() surface.Element { return nil }

func (*canvasState) tag() State                 { return Canvas }
func (s *canvasState) element() surface.Element { return s.canvas }

func (*imageState) tag() State                 { return Image }
func (s *imageState) element() surface.Element { return s.image }

func (*realtimeState) tag() State                 { return Realtime }
func (s *realtimeState) element() surface.Element { return s.live }

// viewer is one logical viewport.
type viewer struct {
	id      string
	display surface.Display
	res     render.Resolution
	desc    SceneDescriptor
	dirty   bool
	state   viewerState

	lastRender time.Time
	prevRender time.Time

	// removed is set by RemoveViewer; queued operations skip removed
	// viewers.
	removed bool
}

func newViewer(id string, d surface.Display, desc SceneDescriptor) *viewer {
	return &viewer{
		id:      id,
		display: d,
		res:     d.Size(),
		desc:    desc,
		state:   emptyState{},
	}
}

// registry holds the viewers in insertion order.
type registry struct {
	byID  map[string]*viewer
	order []*viewer
}

func newRegistry() *registry {
	return &registry{byID: make(map[string]*viewer)}
}

func (r *registry) get(id string) (*viewer, bool) {
	v, ok := r.byID[id]
	return v, ok
}

func (r *registry) add(v *viewer) {
	r.byID[v.id] = v
	r.order = append(r.order, v)
}

func (r *registry) remove(id string) (*viewer, bool) {
	v, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, x := range r.order {
		if x == v {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return v, true
}

// all returns a snapshot of the viewers in insertion order.
func (r *registry) all() []*viewer {
	return append([]*viewer(nil), r.order...)
}

func (r *registry) len() int {
	return len(r.order)
}

// ViewerInfo is a diagnostic summary of one viewer.
type ViewerInfo struct {
	ID    string `json:"id"`
	State State  `json:"state"`
}
