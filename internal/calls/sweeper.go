package calls

import (
	"context"
	"time"

	"github.com/wolfman30/report-ivr/internal/calllog"
	"github.com/wolfman30/report-ivr/internal/dialog"
)

// Sweep abandons sessions idle for longer than the idle timeout and drops expired tombstones.
// It returns the number of sessions abandoned. Entries busy with an event are skipped.
func (r *Router) Sweep(ctx context.Context, now time.Time) int {
	type candidate struct {
		callID string
		e      *entry
	}
	r.mu.Lock()
	candidates := make([]candidate, 0, len(r.entries))
	for id, e := range r.entries {
		candidates = append(candidates, candidate{callID: id, e: e})
	}
	for id, tomb := range r.ended {
		if now.Sub(tomb.endedAt) >= r.cfg.EndedRetention {
			delete(r.ended, id)
		}
	}
	r.mu.Unlock()

	abandoned := 0
	for _, c := range candidates {
		if !c.e.mu.TryLock() {
			continue
		}
		if r.expire(ctx, c.callID, c.e, now) {
			abandoned++
		}
		c.e.mu.Unlock()
	}
	return abandoned
}

func (r *Router) expire(ctx context.Context, callID string, e *entry, now time.Time) bool {
	if e.closed {
		return false
	}
	s := e.session
	if s == nil {
		// Placeholder whose first event never completed.
		if now.Sub(e.created) <= r.cfg.IdleTimeout {
			return false
		}
		r.finish(ctx, e, callID, calllog.StatusAbandoned, "goodbye")
		return true
	}
	if now.Sub(s.LastActivity) <= r.cfg.IdleTimeout {
		return false
	}
	r.cfg.Machine.Advance(s, dialog.Input{Kind: dialog.InputTimeout})
	r.logger.Info("session timed out", "call_id", callID, "state", s.State, "idle", now.Sub(s.LastActivity).String())
	r.finish(ctx, e, callID, calllog.StatusAbandoned, "goodbye")
	return true
}

// Run sweeps on every tick until ctx is cancelled.
func (r *Router) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ctx, r.cfg.Now()); n > 0 {
				r.logger.Debug("idle sessions abandoned", "count", n)
			}
		}
	}
}
