package health

import (
	"net/http"
	"time"

	"github.com/lumenchat/lumen/internal/infrastructure/json"
)

var startTime = time.Now()

// ConnectionCounter reports the live client-connection count.
type ConnectionCounter interface {
	ConnectionCount() int
}

type Handler struct {
	connections ConnectionCounter
	brokerState func() string
}

func NewHandler(connections ConnectionCounter, brokerState func() string) *Handler {
	return &Handler{
		connections: connections,
		brokerState: brokerState,
	}
}

// GetHealth reports uptime, broker state and the live connection count.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	broker := h.brokerState()

	status := "ok"
	code := http.StatusOK
	if broker != "connected" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	json.Write(w, code, healthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      time.Since(startTime).Round(time.Second).String(),
		Connections: h.connections.ConnectionCount(),
		Broker:      broker,
	})
}
