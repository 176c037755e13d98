package api

import "net/http"

func (s *Server) handleOCRStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "ocr stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"engine":      s.engine,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	})
}
