package server

import (
	"net/http"

	"github.com/me/mdconsole/pkg/model"
)

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	var endpoints []endpointInfo
	for _, e := range []model.Entity{model.DesignationEntity, model.PlantEntity, model.PlantAssignmentEntity, model.DocumentEntity} {
		endpoints = append(endpoints,
			endpointInfo{"/api/v1/" + e.Plural, []string{"GET", "POST"}, e.Title + " list (pageNumber, pageSize, searchText) and create"},
			endpointInfo{"/api/v1/" + e.Plural + "/{id}", []string{"GET", "PUT", "DELETE"}, "Single " + e.Title + " operations; PUT requires a reason, DELETE an actor"},
		)
	}
	endpoints = append(endpoints, endpointInfo{"/api/v1/health", []string{"GET"}, "Server health and version"})
	if s.metrics != nil {
		endpoints = append(endpoints, endpointInfo{"/metrics", []string{"GET"}, "Prometheus metrics"})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"header": header(),
		"api": discoveryResponse{
			Name:        "Master Data API",
			Version:     "v1",
			Description: "Designations, plants, plant assignments and documents",
			Endpoints:   endpoints,
		},
	})
}
