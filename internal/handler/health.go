package handler

import (
	"net/http"

	"motorwatch/internal/service/mqtt"
)

// PoolSizer reports how many detector instances are loaded.
type PoolSizer interface {
	PoolSize() int
}

// MQTTStatus reports the MQTT transport counters.
type MQTTStatus interface {
	Stats() mqtt.Stats
}

// Pinger checks the ledger connection.
type Pinger interface {
	Ping() error
}

type healthResponse struct {
	Status        string      `json:"status"`
	DetectorPool  int         `json:"detector_pool"`
	Ledger        string      `json:"ledger"`
	MQTT          *mqtt.Stats `json:"mqtt,omitempty"`
	ViewerClients int         `json:"viewer_clients"`
}

// HealthHandler reports detector pool size, MQTT state and ledger status.
// mqttStatus and viewers may be nil.
func HealthHandler(detector PoolSizer, mqttStatus MQTTStatus, ledger Pinger, viewers interface{ ClientCount() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:       "ok",
			DetectorPool: detector.PoolSize(),
			Ledger:       "ok",
		}
		status := http.StatusOK

		if err := ledger.Ping(); err != nil {
			resp.Ledger = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		if mqttStatus != nil {
			stats := mqttStatus.Stats()
			resp.MQTT = &stats
			if !stats.Connected {
				resp.Status = "degraded"
			}
		}
		if viewers != nil {
			resp.ViewerClients = viewers.ClientCount()
		}

		writeJSON(w, status, resp)
	}
}
