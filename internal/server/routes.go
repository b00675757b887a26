package server

import "net/http"

// RegisterRoutes registers all API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/v1/topology", s.handleTopology)
	mux.HandleFunc("PUT /api/v1/topology/focus", s.handleSetFocus)
	mux.HandleFunc("DELETE /api/v1/topology/focus", s.handleResetFocus)
	mux.HandleFunc("GET /api/v1/topology/focus/{id...}", s.handleFocus)
	mux.HandleFunc("GET /api/v1/topology/neighbors/{id...}", s.handleNeighbors)
	mux.HandleFunc("GET /api/v1/topology/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/networks", s.handleNetworks)
	mux.HandleFunc("GET /api/v1/networks/{id...}", s.handleNetworkByID)
	mux.HandleFunc("GET /api/v1/subscriptions", s.handleSubscriptions)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/refreshes", s.handleRefreshes)
	mux.HandleFunc("GET /api/v1/refresh/status", s.handleRefreshStatus)

	mux.HandleFunc("GET /api/v1/export/json", s.handleExportJSON)
	mux.HandleFunc("GET /api/v1/export/dot", s.handleExportDOT)
	mux.HandleFunc("GET /api/v1/export/mermaid", s.handleExportMermaid)

	if !s.readOnly {
		mux.HandleFunc("POST /api/v1/refresh", s.handleTriggerRefresh)
		mux.HandleFunc("POST /api/v1/inventory", s.handleInventory)
	}
}
