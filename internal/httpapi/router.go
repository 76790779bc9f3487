package httpapi

import (
	"github.com/gorilla/mux"

	"github.com/aglayrton/fluxo-agua/internal/metrics"
)

// NewRouter wires the API routes
func NewRouter(h *Handlers, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	r.HandleFunc("/readings", h.SubmitReading).Methods("POST")

	r.HandleFunc("/consumption/daily", h.DailyConsumption).Methods("GET")
	r.HandleFunc("/consumption/monthly", h.MonthlyConsumption).Methods("GET")

	r.HandleFunc("/goal", h.GetGoal).Methods("GET")
	r.HandleFunc("/goal", h.CreateGoal).Methods("POST")
	r.HandleFunc("/goal", h.UpdateGoal).Methods("PUT")

	r.HandleFunc("/flow-control", h.FlowStatus).Methods("GET")
	r.HandleFunc("/flow-control/status", h.SetFlowStatus).Methods("PATCH")

	r.HandleFunc("/sensors", h.ListSensors).Methods("GET")
	r.HandleFunc("/sensors", h.CreateSensor).Methods("POST")
	r.HandleFunc("/sensors/{id}", h.GetSensor).Methods("GET")
	r.HandleFunc("/sensors/{id}", h.DeleteSensor).Methods("DELETE")

	r.HandleFunc("/recipients", h.ListRecipients).Methods("GET")
	r.HandleFunc("/recipients", h.CreateRecipient).Methods("POST")
	r.HandleFunc("/recipients/{id}", h.UpdateRecipient).Methods("PATCH")
	r.HandleFunc("/recipients/{id}", h.DeleteRecipient).Methods("DELETE")

	return r
}
