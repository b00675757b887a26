package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/matijazezelj/peerscope/internal/inventory"
	"github.com/matijazezelj/peerscope/internal/refresh"
	"github.com/matijazezelj/peerscope/internal/source"
	"github.com/matijazezelj/peerscope/internal/topology"
	"github.com/matijazezelj/peerscope/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pathID restores the leading slash of a resource id taken from a
// {id...} wildcard, since the mux strips it along with the route prefix.
func pathID(r *http.Request) string {
	id := r.PathValue("id")
	if id == "" || strings.HasPrefix(id, "/") {
		return id
	}
	return "/" + id
}

func (s *Server) engineName() string {
	if _, ok := s.engine.(*topology.MemgraphEngine); ok {
		return "memgraph"
	}
	return "local"
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Handler().ServeHTTP(w, r)
}

// handleTopology returns the topology held by the focus controller with the
// current selection applied. ?focus=<id> previews another selection on the
// same snapshot without changing it; an unknown id yields the plain graph.
func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("focus")
	if target == "" {
		writeJSON(w, http.StatusOK, s.controller.View())
		return
	}

	view, err := s.controller.Preview(target)
	if errors.Is(err, topology.ErrNodeNotFound) {
		s.metrics.ObserveFocus("local", "not_found")
		writeJSON(w, http.StatusOK, s.controller.Full())
		return
	}
	if err != nil {
		s.metrics.ObserveFocus("local", "error")
		s.logger.Error("focus", "target", target, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.metrics.ObserveFocus("local", "ok")
	writeJSON(w, http.StatusOK, view)
}

type setFocusRequest struct {
	ID string `json:"id"`
}

// handleSetFocus moves the controller selection. An empty id resets it.
func (s *Server) handleSetFocus(w http.ResponseWriter, r *http.Request) {
	var req setFocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := s.controller.SetFocus(req.ID)
	if errors.Is(err, topology.ErrNodeNotFound) {
		s.metrics.ObserveFocus("local", "not_found")
		writeError(w, http.StatusNotFound, "network not found")
		return
	}
	if err != nil {
		s.metrics.ObserveFocus("local", "error")
		s.logger.Error("focus", "target", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.ID != "" {
		s.metrics.ObserveFocus("local", "ok")
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleResetFocus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Reset())
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "network id required")
		return
	}

	result, err := s.engine.Focus(r.Context(), id)
	if errors.Is(err, topology.ErrNodeNotFound) {
		s.metrics.ObserveFocus(s.engineName(), "not_found")
		writeError(w, http.StatusNotFound, "network not found")
		return
	}
	if err != nil {
		s.metrics.ObserveFocus(s.engineName(), "error")
		s.logger.Error("focus", "target", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.metrics.ObserveFocus(s.engineName(), "ok")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "network id required")
		return
	}

	nodes, err := s.engine.Neighbors(r.Context(), id)
	if errors.Is(err, topology.ErrNodeNotFound) {
		writeError(w, http.StatusNotFound, "network not found")
		return
	}
	if err != nil {
		s.logger.Error("neighbors", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, topology.SearchOptions(s.controller.Full(), r.URL.Query().Get("q")))
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	filter := inventory.NetworkFilter{
		Kind:           r.URL.Query().Get("kind"),
		SubscriptionID: r.URL.Query().Get("subscription"),
		ResourceGroup:  r.URL.Query().Get("resource_group"),
	}

	nets, err := s.store.ListNetworks(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing networks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if nets == nil {
		nets = []models.StoredNetwork{}
	}
	writeJSON(w, http.StatusOK, nets)
}

func (s *Server) handleNetworkByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "network id required")
		return
	}

	n, err := s.store.GetNetwork(r.Context(), id)
	if err != nil {
		s.logger.Error("getting network", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if n == nil {
		writeError(w, http.StatusNotFound, "network not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubscriptions(r.Context())
	if err != nil {
		s.logger.Error("listing subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	networkCount, _ := s.store.NetworkCount(ctx)
	peeringCount, _ := s.store.PeeringCount(ctx)
	byKind, _ := s.store.NetworkCountByKind(ctx)
	byState, _ := s.store.PeeringCountByState(ctx)

	stats := map[string]any{
		"networks_total":    networkCount,
		"peerings_total":    peeringCount,
		"networks_by_kind":  byKind,
		"peerings_by_state": byState,
		"engine":            s.engineName(),
	}
	if full, err := s.engine.Topology(ctx); err == nil {
		stats["topology"] = topology.Summarize(full)
	} else {
		s.logger.Warn("stats topology summary", "error", err)
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRefreshes(w http.ResponseWriter, r *http.Request) {
	refreshes, err := s.store.ListRefreshes(r.Context(), 50)
	if err != nil {
		s.logger.Error("listing refreshes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if refreshes == nil {
		refreshes = []inventory.Refresh{}
	}
	writeJSON(w, http.StatusOK, refreshes)
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, _ *http.Request) {
	running := s.refresher != nil && s.refresher.IsRunning()
	writeJSON(w, http.StatusOK, map[string]any{"running": running})
}

// refreshTriggerRequest is the JSON body for POST /api/v1/refresh.
type refreshTriggerRequest struct {
	Source string   `json:"source"`
	Paths  []string `json:"paths,omitempty"`
}

// validatePath checks a single file path for traversal and requires absolute paths.
func validatePath(p string) error {
	if strings.Contains(p, "..") {
		return fmt.Errorf("path %q contains directory traversal", p)
	}
	if !filepath.IsAbs(filepath.Clean(p)) {
		return fmt.Errorf("path %q must be absolute", p)
	}
	return nil
}

func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresher not configured")
		return
	}

	var req refreshTriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch req.Source {
	case refresh.SourceAll:
		req.Paths = nil
	case refresh.SourceFile:
		if len(req.Paths) == 0 {
			writeError(w, http.StatusBadRequest, "paths required for file refreshes")
			return
		}
		for _, p := range req.Paths {
			if err := validatePath(p); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "source must be one of: file, all")
		return
	}

	id, err := s.refresher.RunAsync(r.Context(), refresh.Request{Source: req.Source, Paths: req.Paths})
	if errors.Is(err, refresh.ErrNoSources) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("triggering refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start refresh")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "refresh triggered",
		"refresh_id": id,
	})
}

// handleInventory replaces the inventory with the snapshot in the request
// body and answers with the resulting counts.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresher not configured")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	snap, err := source.DecodeJSON(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res := s.refresher.RunSync(r.Context(), refresh.Request{Source: refresh.SourceInline, Snapshot: &snap})
	if res.Error != nil {
		s.logger.Error("inline refresh", "error", res.Error)
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"refresh_id": res.RefreshID,
		"networks":   res.Networks,
		"peerings":   res.Peerings,
		"topology":   res.Summary,
		"events":     res.Events,
		"warnings":   warnings,
	})
}

func (s *Server) exportTopology(w http.ResponseWriter, r *http.Request) (models.Topology, bool) {
	full, err := s.engine.Topology(r.Context())
	if err != nil {
		s.logger.Error("export", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return models.Topology{}, false
	}
	return full, true
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	full, ok := s.exportTopology(w, r)
	if !ok {
		return
	}
	out, err := topology.ExportJSON(full)
	if err != nil {
		s.logger.Error("export json", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="peerscope-topology.json"`)
	_, _ = w.Write([]byte(out))
}

func (s *Server) handleExportDOT(w http.ResponseWriter, r *http.Request) {
	full, ok := s.exportTopology(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Header().Set("Content-Disposition", `attachment; filename="peerscope-topology.dot"`)
	_, _ = w.Write([]byte(topology.ExportDOT(full)))
}

func (s *Server) handleExportMermaid(w http.ResponseWriter, r *http.Request) {
	full, ok := s.exportTopology(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", `attachment; filename="peerscope-topology.mmd"`)
	_, _ = w.Write([]byte(topology.ExportMermaid(full)))
}
