package handler

import (
	"net/http"

	"github.com/pkordes/missionmap/api"
	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/syncer"
)

type healthResponse struct {
	Status string `json:"status"`
}

// getHealth handles GET /healthz. It answers 200 as long as the process runs;
// remote trouble is reported by /sync/status, not here.
func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// getOpenAPI handles GET /openapi.yaml.
func (s *Server) getOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPI)
}

type documentResponse struct {
	Document domain.Document `json:"document"`
	State    syncer.State    `json:"state"`
}

// getDocument handles GET /document: the whole dataset plus sync status.
func (s *Server) getDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, documentResponse{Document: s.sync.Snapshot(), State: s.sync.State()})
}
