package viewmux

import (
	"time"

	"github.com/gogpu/viewmux/rpc"
)

// requestIdle restarts idle staging from zero on the fast cadence.
func (m *Mux) requestIdle() {
	m.idleStage = 0
	if m.idleTimer != nil && m.idleFast {
		return
	}
	m.armIdle(m.cfg.IdleFast)
	m.idleFast = true
}

func (m *Mux) armIdle(d time.Duration) {
	m.stopIdle()
	m.idleGen++
	gen := m.idleGen
	m.idleTimer = m.clock.AfterFunc(d, func() { m.idleTick(gen) })
	m.idleFast = false
}

func (m *Mux) stopIdle() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.idleGen++
}

// idleInterval returns the idle cadence at stage.
func (m *Mux) idleInterval(stage int) time.Duration {
	switch {
	case stage >= m.cfg.IdleFreeTargetsStage:
		return m.cfg.IdleSlow
	case stage >= m.cfg.IdleSlowdownStage:
		return m.cfg.IdleMedium
	default:
		return m.cfg.IdleFast
	}
}

// idleTick advances the idle stage, degrades idle viewers and frees
// backend resource tiers as the stage passes their thresholds.
//
// Only Canvas and Realtime viewers hold the stage at IdleSlowdownStage.
// Empty viewers own no backend resources, so the globals tier may be freed
// while some exist; every other viewer is an Image by then.
func (m *Mux) idleTick(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.idleGen || m.closed {
		return
	}
	m.idleTimer = nil
	m.idleFast = false
	if !m.initialized {
		return
	}

	now := m.clock.Now()
	m.idleStage++

	for _, v := range m.viewers.order {
		tag := v.state.tag()

		// Hold the stage until every viewer has let go of GPU-backed
		// surfaces.
		if (tag == Canvas || tag == Realtime) && m.idleStage > m.cfg.IdleSlowdownStage {
			m.idleStage = m.cfg.IdleSlowdownStage
		}

		if m.locks.Held(v.id) {
			continue
		}
		idle := now.Sub(v.lastRender)
		if tag == Realtime && idle > m.cfg.QuietPeriod {
			m.demote(v)
		} else if tag == Canvas && idle > m.cfg.FreezeAfter {
			m.freeze(v)
			break
		}
	}

	switch m.idleStage {
	case m.cfg.IdleFreeTargetsStage:
		m.freeResources(rpc.Tiers{Targets: true})
	case m.cfg.IdleFreeScenesStage:
		m.freeResources(rpc.Tiers{Scenes: true})
	case m.cfg.IdleFreeGlobalsStage:
		m.dropGlobals()
	}

	if m.idleStage < m.cfg.IdleFreeGlobalsStage {
		m.armIdle(m.idleInterval(m.idleStage))
	}
}

// freeze degrades v to a frozen image.
func (m *Mux) freeze(v *viewer) {
	m.log.Debug("viewmux: freezing idle viewer", "viewer", v.id)
	m.viewerOp(v, "freeze", func() error {
		return m.transition(v, Image)
	})
}

func (m *Mux) freeResources(tiers rpc.Tiers) {
	if m.destroyed {
		return
	}
	m.logBackendError("freeResources", m.client.FreeResources(m.ctx, tiers))
}

// dropGlobals tears down the backend context entirely. The next frame tick
// sets it up again.
func (m *Mux) dropGlobals() {
	if m.destroyed {
		return
	}
	m.log.Info("viewmux: dropping backend context")
	m.freeResources(rpc.Tiers{Targets: true, Scenes: true, Globals: true})

	b := m.client.Backend()
	if err := b.Destroy(); err != nil {
		m.log.Warn("viewmux: backend destroy failed", "err", err)
	}
	m.destroyed = true
	if loser, ok := b.(rpc.ContextLoser); ok {
		loser.LoseContext()
	}
	if m.live != nil {
		m.live.Destroy()
		m.live = nil
	}
	m.fence = nil
}
