package viewmux

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/viewmux/lease"
	"github.com/gogpu/viewmux/render"
	"github.com/gogpu/viewmux/rpc"
	"github.com/gogpu/viewmux/surface"
)

var (
	errSlotBusy     = errors.New("viewmux: realtime slot held by another viewer")
	errEmptyDisplay = errors.New("viewmux: display has no area")
)

// transition moves v to state to. It runs under the viewer's lease with
// mu held, releasing mu only around backend calls and waits.
func (m *Mux) transition(v *viewer, to State) error {
	from := v.state.tag()
	if from == to {
		return nil
	}
	m.log.Debug("viewmux: transition", "viewer", v.id, "from", from, "to", to)

	switch to {
	case Empty:
		m.toEmpty(v)
		return nil
	case Canvas:
		return m.toCanvas(v)
	case Image:
		return m.toImage(v)
	case Realtime:
		return m.toRealtime(v)
	default:
		return fmt.Errorf("viewmux: unknown state %v", to)
	}
}

// toEmpty destroys whatever v shows.
func (m *Mux) toEmpty(v *viewer) {
	switch s := v.state.(type) {
	case *canvasState:
		s.canvas.Destroy()
	case *imageState:
		s.image.Destroy()
	case *realtimeState:
		surface.Detach(s.live)
		s.live.Show(false)
		if s.previous != nil {
			s.previous.Destroy()
		}
		if m.liveOwner == v {
			m.liveOwner = nil
		}
	}
	if m.realtimeID == v.id {
		m.realtimeID = ""
	}
	v.state = emptyState{}
}

func (m *Mux) toCanvas(v *viewer) error {
	var canvas *surface.Canvas
	rs, fromRealtime := v.state.(*realtimeState)
	if fromRealtime {
		canvas = rs.previous
	}
	fresh := canvas == nil
	if fresh {
		canvas = surface.NewCanvas(render.Resolution{})
	}

	display := v.res
	res := m.policy.RenderResolution(display, m.window, false)
	canvas.Resize(res)
	canvas.SetDisplaySize(display)

	bitmap, err := m.renderToBitmap(v, res, render.PixelScale(res, display))
	if err == nil {
		err = canvas.Paint(bitmap)
	}
	if err != nil {
		if fresh {
			canvas.Destroy()
		}
		return err
	}

	if fromRealtime {
		surface.Detach(rs.live)
		rs.live.Show(false)
		rs.previous = nil
		if m.liveOwner == v {
			m.liveOwner = nil
		}
		if m.realtimeID == v.id {
			m.realtimeID = ""
		}
	} else {
		m.toEmpty(v)
	}
	surface.Attach(v.display, canvas)
	v.state = &canvasState{canvas: canvas}
	return nil
}

func (m *Mux) toImage(v *viewer) error {
	if err := m.transition(v, Canvas); err != nil {
		return err
	}
	cs, ok := v.state.(*canvasState)
	if !ok {
		m.toEmpty(v)
		return nil
	}

	canvas, display := cs.canvas, v.res
	var (
		img *surface.Image
		err error
	)
	m.unlocked(func() {
		img, err = surface.Freeze(canvas, display)
		if err == nil {
			_, err = img.Load()
		}
	})
	if err != nil {
		return fmt.Errorf("viewmux: freeze %s: %w", v.id, err)
	}
	if v.state != viewerState(cs) {
		img.Destroy()
		return nil
	}

	surface.Attach(v.display, img)
	v.state = &imageState{image: img}
	m.clock.AfterFunc(m.cfg.FreezeGrace, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		canvas.Destroy()
	})
	return nil
}

func (m *Mux) toRealtime(v *viewer) error {
	if m.liveOwner != nil && m.liveOwner != v {
		return errSlotBusy
	}
	live, err := m.liveSurface()
	if err != nil {
		return err
	}

	display := v.res
	res := m.policy.RenderResolution(display, m.window, true)
	if res.Empty() {
		return errEmptyDisplay
	}
	live.Show(true)
	live.Resize(res)
	live.SetDisplaySize(display)
	m.liveOwner = v

	if err := m.renderRealtime(v, res, render.PixelScale(res, display)); err != nil {
		m.liveOwner = nil
		live.Show(false)
		return err
	}

	var previous *surface.Canvas
	if cs, ok := v.state.(*canvasState); ok {
		previous = cs.canvas
		surface.Detach(previous)
	} else {
		m.toEmpty(v)
		m.liveOwner = v
	}
	surface.Attach(v.display, live)
	v.state = &realtimeState{live: live, previous: previous}
	m.realtimeID = v.id
	return nil
}

// refresh re-renders v in its current state. Empty and Image viewers are
// brought back to Canvas.
func (m *Mux) refresh(v *viewer) error {
	display := v.res
	switch s := v.state.(type) {
	case *canvasState:
		res := m.policy.RenderResolution(display, m.window, false)
		bitmap, err := m.renderToBitmap(v, res, render.PixelScale(res, display))
		if err != nil {
			return err
		}
		if v.state != viewerState(s) {
			return nil
		}
		s.canvas.Resize(res)
		if s.canvas.DisplaySize() != display {
			s.canvas.SetDisplaySize(display)
		}
		return s.canvas.Paint(bitmap)
	case *realtimeState:
		res := m.policy.RenderResolution(display, m.window, true)
		if res.Empty() {
			return errEmptyDisplay
		}
		s.live.Resize(res)
		if s.live.DisplaySize() != display {
			s.live.SetDisplaySize(display)
		}
		return m.renderRealtime(v, res, render.PixelScale(res, display))
	default:
		return m.transition(v, Canvas)
	}
}

// renderToBitmap renders v into the snapshot target and reads it back.
func (m *Mux) renderToBitmap(v *viewer, res render.Resolution, scale float64) (*image.RGBA, error) {
	if res.Empty() {
		return nil, errEmptyDisplay
	}
	f := lease.Acquire(m.targets, render.Snapshot, func(lease.Lease[render.Target]) (*image.RGBA, error) {
		if err := m.renderTarget(render.Snapshot, v.desc, res, scale); err != nil {
			return nil, err
		}
		if err := m.finishRendering(); err != nil {
			return nil, err
		}
		var px *rpc.Pixels
		err := m.call(func(ctx context.Context, c *rpc.Client) error {
			var err error
			px, err = c.GetPixels(ctx, int(render.Snapshot), res.Width, res.Height)
			return err
		})
		if err != nil {
			return nil, err
		}
		return render.BitmapFromPixels(px.Data, res, px.Format)
	})
	return await(m, f)
}

// renderRealtime renders v into the realtime target and presents it.
func (m *Mux) renderRealtime(v *viewer, res render.Resolution, scale float64) error {
	f := lease.Acquire(m.targets, render.Realtime, func(lease.Lease[render.Target]) (struct{}, error) {
		if err := m.renderTarget(render.Realtime, v.desc, res, scale); err != nil {
			return struct{}{}, err
		}
		err := m.call(func(ctx context.Context, c *rpc.Client) error {
			return c.Present(ctx, int(render.Realtime), res.Width, res.Height)
		})
		m.logBackendError("present", err)
		if err == nil && m.live != nil {
			m.live.Presented()
		}
		m.window.RequestRedraw()
		return struct{}{}, nil
	})
	_, err := await(m, f)
	return err
}

// renderTarget issues a render command once no fence is outstanding.
// Backend errors are logged and otherwise ignored: the frame shows the
// backend's own error state.
func (m *Mux) renderTarget(t render.Target, desc SceneDescriptor, res render.Resolution, scale float64) error {
	if _, err := await(m, m.waitForSync()); err != nil {
		return err
	}
	target := rpc.TargetDesc{
		TargetIndex: int(t),
		Width:       res.Width,
		Height:      res.Height,
		Samples:     m.cfg.Samples,
		PixelScale:  scale,
	}
	err := m.call(func(ctx context.Context, c *rpc.Client) error {
		return c.Render(ctx, target, desc)
	})
	m.logBackendError("render", err)
	return nil
}

// logBackendError logs transport failures. Error responses were already
// logged by the client.
func (m *Mux) logBackendError(cmd string, err error) {
	var rerr *rpc.Error
	if err != nil && !errors.As(err, &rerr) {
		m.log.Warn("viewmux: backend call failed", "cmd", cmd, "err", err)
	}
}

// waitForSync settles once no fence is outstanding.
func (m *Mux) waitForSync() *lease.Future[struct{}] {
	return lease.When(m.run, func() bool {
		return m.fence == nil || m.closed
	})
}

// finishRendering inserts a fence after the commands issued so far and
// waits for it to signal. Backends without fences return at once.
func (m *Mux) finishRendering() error {
	if m.fence == nil {
		if fencer, ok := m.client.Backend().(rpc.Fencer); ok {
			if fence, ok := fencer.FenceSync(); ok {
				m.fence = fence
				m.run.Poll(func() bool {
					if m.fence != fence {
						return false
					}
					if !m.closed && !fence.Signaled() {
						return true
					}
					fence.Delete()
					m.fence = nil
					return false
				})
			}
		}
	}
	_, err := await(m, m.waitForSync())
	return err
}
