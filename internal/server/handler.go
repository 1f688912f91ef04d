package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/discrapp/discr-site/internal/funding"
)

// Snapshotter produces the campaign record for one request.
type Snapshotter interface {
	Snapshot(ctx context.Context) funding.Result
}

type Handler struct{ snapshots Snapshotter }

func NewHandler(snapshots Snapshotter) *Handler { return &Handler{snapshots: snapshots} }

// getCampaign always answers 200: the banner renders unconditionally and
// learns about failures only through the fallback/error flags.
func (h *Handler) getCampaign(w http.ResponseWriter, r *http.Request) {
	res := h.snapshots.Snapshot(r.Context())
	if res.Outcome != funding.OutcomeOK {
		hlog.FromRequest(r).Info().Str("outcome", string(res.Outcome)).Msg("serving default campaign snapshot")
	}
	w.Header().Set("Cache-Control", res.CacheControl())
	writeJSON(w, http.StatusOK, res.Snapshot)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
