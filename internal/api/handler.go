package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"parkvision-backend/config"
	"parkvision-backend/internal/live"
	"parkvision-backend/internal/parking"
	"parkvision-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	orch    *parking.Orchestrator
	hub     *live.Hub
	lots    []config.LotConfig
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, orch *parking.Orchestrator, hub *live.Hub, lots []config.LotConfig, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:   s,
		orch:    orch,
		hub:     hub,
		lots:    lots,
		webpush: webpushOptions,
	}
}

func (h *Handler) knownLot(id string) bool {
	for _, lot := range h.lots {
		if lot.ID == id {
			return true
		}
	}
	return false
}
