package core

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Event is the structured record every successful execute call emits: an
// action name, the generated/affected resource id, the caller, and any
// attributes the operation names. TraceID is additive bookkeeping for
// host-side correlation of a single handler's event stream.
type Event struct {
	Action     string         `json:"action"`
	TraceID    string         `json:"trace_id"`
	Caller     Address        `json:"caller"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// BroadcasterFunc receives every emitted event. Installed via SetBroadcaster;
// the default implementation just logs, matching how a standalone node runs
// this package without a host attached.
type BroadcasterFunc func(Event)

var (
	broadcastMu   sync.RWMutex
	broadcastHook BroadcasterFunc = defaultBroadcaster
)

// SetBroadcaster installs the event sink used by Broadcast. Passing nil
// restores the default (log-only) behaviour.
func SetBroadcaster(fn BroadcasterFunc) {
	broadcastMu.Lock()
	defer broadcastMu.Unlock()
	if fn == nil {
		fn = defaultBroadcaster
	}
	broadcastHook = fn
}

// Broadcast emits ev to the configured sink. Handlers call this only after
// their state change succeeds, once per call except CreateBatchPosts, which
// emits one event per post plus a summary event; on a validation or
// authorization failure the event log is empty.
func Broadcast(ev Event) {
	if ev.TraceID == "" {
		ev.TraceID = uuid.NewString()
	}
	broadcastMu.RLock()
	fn := broadcastHook
	broadcastMu.RUnlock()
	fn(ev)
}

func defaultBroadcaster(ev Event) {
	attrs, _ := json.Marshal(ev.Attributes)
	log.WithFields(log.Fields{
		"action":  ev.Action,
		"caller":  ev.Caller.Short(),
		"trace":   ev.TraceID,
		"attribs": string(attrs),
	}).Info("event")
}
