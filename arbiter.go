package viewmux

import (
	"slices"
	"time"
)

// arbiter decides which viewer holds the realtime slot.
//
// Explicit claims win outright for InteractionTTL. Without a claim, the
// viewer with the most renders in the trailing PromotionWindow is promoted
// if it has at least PromotionMinRenders and at least PromotionRatio times
// the renders of the resident realtime viewer.
type arbiter struct {
	cfg Config

	history map[string][]time.Time

	// Descriptor-derived interaction: the last viewer seen with a recent
	// interaction, and when.
	prevID string
	prevAt time.Time

	// Active claim on the slot.
	claimID string
	claimAt time.Time
}

func newArbiter(cfg Config) *arbiter {
	return &arbiter{cfg: cfg, history: make(map[string][]time.Time)}
}

// record tallies a render of id at now.
func (a *arbiter) record(id string, now time.Time) {
	a.history[id] = append(a.prune(id, now), now)
}

// prune drops renders of id older than the window.
func (a *arbiter) prune(id string, now time.Time) []time.Time {
	h := a.history[id]
	i := 0
	for i < len(h) && now.Sub(h[i]) >= a.cfg.PromotionWindow {
		i++
	}
	h = h[i:]
	if len(h) == 0 {
		delete(a.history, id)
		return nil
	}
	a.history[id] = h
	return h
}

// count returns the renders of id in the window.
func (a *arbiter) count(id string, now time.Time) int {
	if id == "" {
		return 0
	}
	return len(a.prune(id, now))
}

// claim hands the slot to id for the interaction TTL.
func (a *arbiter) claim(id string, now time.Time) {
	a.claimID, a.claimAt = id, now
	a.prevID, a.prevAt = id, now
}

// observe feeds the interaction timestamp of a new request by id. A
// second recent interaction from the same viewer within the window claims
// the slot.
func (a *arbiter) observe(id string, latest, now time.Time) {
	if a.prevID == id && now.Sub(a.prevAt) < a.cfg.InteractionWindow {
		a.claimID, a.claimAt = id, now
	}
	if !latest.IsZero() && now.Sub(latest) < a.cfg.InteractionWindow {
		a.prevID, a.prevAt = id, now
	}
}

// claimed returns the current claimant, expiring stale claims.
func (a *arbiter) claimed(now time.Time) string {
	if a.claimID != "" && now.Sub(a.claimAt) > a.cfg.InteractionTTL {
		a.claimID = ""
	}
	return a.claimID
}

// forget drops all state about id.
func (a *arbiter) forget(id string) {
	delete(a.history, id)
	if a.claimID == id {
		a.claimID = ""
	}
	if a.prevID == id {
		a.prevID = ""
	}
}

// decide returns the viewer to promote, or "" to leave the slot as it is.
// current is the resident realtime viewer; only ids in candidates, in
// order, may be promoted.
func (a *arbiter) decide(now time.Time, current string, candidates []string) string {
	if claim := a.claimed(now); claim != "" {
		if claim != current && slices.Contains(candidates, claim) {
			return claim
		}
		return ""
	}

	best, bestCount := "", 0
	for _, id := range candidates {
		if n := a.count(id, now); n > bestCount {
			best, bestCount = id, n
		}
	}
	if best == "" || best == current {
		return ""
	}
	if bestCount < a.cfg.PromotionMinRenders {
		return ""
	}
	if float64(bestCount) < a.cfg.PromotionRatio*float64(a.count(current, now)) {
		return ""
	}
	return best
}
