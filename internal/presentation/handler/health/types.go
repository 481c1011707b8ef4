package health

// healthResponse reports liveness plus the operational connection count.
type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
	Broker      string `json:"broker"`
}
