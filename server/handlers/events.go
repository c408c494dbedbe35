package handlers

import (
	"net/http"

	"github.com/shelfd/shelfd/events"
)

// V1Events handles GET /v1/events: upgrades to a websocket and streams
// storage events until the client goes away.
func V1Events(hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
	}
}
