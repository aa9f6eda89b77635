package handlers

import (
	"net/http"

	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
	"github.com/mobilepoint/comparator-stoc-api/internal/websocket"
)

// StatusEvent is pushed to listeners of /api/reconcile/events.
type StatusEvent struct {
	Type   string           `json:"type"`
	Status reconcile.Status `json:"status"`
}

// PublishStatus returns an engine status observer that forwards every
// change to the hub.
func PublishStatus(hub *websocket.Hub) func(reconcile.Status) {
	return func(s reconcile.Status) {
		hub.Broadcast(StatusEvent{Type: "run_status", Status: s})
	}
}

func (r *Router) serveEvents(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.events, w, req)
}
