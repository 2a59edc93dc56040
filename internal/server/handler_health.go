package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/mdconsole/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}
	status := http.StatusOK
	if _, _, err := s.store.Plants().List(r.Context(), model.ListOptions{PageNumber: 1, PageSize: 1}); err != nil {
		s.logger.Error("health check store", "error", err)
		resp.Status = "degraded"
		resp.Store = "unavailable"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{
		"header": header(),
		"health": resp,
	})
}
