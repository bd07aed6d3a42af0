package api

import "net/http"

type healthResponse struct {
	Status         string `json:"status"`
	IndexReady     bool   `json:"index_ready"`
	APIKeySet      bool   `json:"api_key_set"`
	CorpusMessages int    `json:"corpus_messages"`
	ChunkCount     int    `json:"chunk_count"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health reports service liveness. The service stays up while the index
// builds; readiness is reported as degraded rather than failing the
// probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.index.Ready()
	status := "ok"
	if !ready || !h.health.APIKeySet {
		status = "degraded"
	}

	JSON(w, http.StatusOK, healthResponse{
		Status:         status,
		IndexReady:     ready,
		APIKeySet:      h.health.APIKeySet,
		CorpusMessages: h.health.CorpusMessages,
		ChunkCount:     h.index.Statistics().ChunkCount,
		ActiveSessions: h.svc.ActiveSessions(),
	})
}
