// Package approval implements the single-outstanding-request human
// rendezvous: ask(stage, task) suspends until a reviewer approves or
// rejects via the chat bridge, or resolves immediately to true if no
// bridge is configured.
//
// An Oracle with no configured bridge is still usable — it just never
// actually suspends, the same discipline an optional notification
// service follows.
package approval

import "sync"

// Request describes an outstanding approval ask.
type Request struct {
	Stage string
	Task  string
}

// Oracle holds at most one outstanding approval rendezvous per process.
type Oracle struct {
	mu          sync.Mutex
	bridgeReady bool
	pending     chan bool
	current     Request
}

// New returns an Oracle. bridgeReady controls whether Ask actually
// suspends (true) or resolves immediately to true (false, bridge not
// configured).
func New(bridgeReady bool) *Oracle {
	return &Oracle{bridgeReady: bridgeReady}
}

// Ask renders a two-button approve/reject request via the chat bridge
// (notify is called with the request so the caller can render it) and
// blocks until resolved. A new Ask supersedes any unresolved prior one,
// resolving it to false first.
func (o *Oracle) Ask(notify func(Request), req Request) bool {
	if !o.bridgeReady {
		return true
	}

	o.mu.Lock()
	if o.pending != nil {
		o.pending <- false
		close(o.pending)
	}
	ch := make(chan bool, 1)
	o.pending = ch
	o.current = req
	o.mu.Unlock()

	if notify != nil {
		notify(req)
	}

	return <-ch
}

// Resolve answers the single outstanding request with approve. Returns
// false if there was no outstanding request to resolve.
func (o *Oracle) Resolve(approve bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return false
	}
	o.pending <- approve
	close(o.pending)
	o.pending = nil
	return true
}

// Cancel resolves any pending request to reject (false). This is the
// behaviour the Pipeline's stop() invokes: a pending approval is
// resolved as reject to free the worker.
func (o *Oracle) Cancel() {
	o.Resolve(false)
}

// Pending returns the current outstanding request and whether one exists.
func (o *Oracle) Pending() (Request, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.pending != nil
}
