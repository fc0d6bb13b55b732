package handler

import (
	"net/http"
)

// HealthHandler reports liveness and which optional integrations are active.
type HealthHandler struct {
	store       string
	sheetsReady func() bool
}

func NewHealthHandler(store string, sheetsReady func() bool) *HealthHandler {
	if sheetsReady == nil {
		sheetsReady = func() bool { return false }
	}
	return &HealthHandler{store: store, sheetsReady: sheetsReady}
}

type healthBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Store   string `json:"store"`
	Sheets  bool   `json:"sheets"`
}

func (h *HealthHandler) Check(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{Success: true, Status: "ok", Store: h.store, Sheets: h.sheetsReady()})
}
