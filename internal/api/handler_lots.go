package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parkvision-backend/internal/model"
)

// LotResponse represents the API response for a single lot.
type LotResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	TotalSpots int        `json:"total_spots"`
	Entering   int64      `json:"entering"`
	Parked     int64      `json:"parked"`
	FreeSpots  *int       `json:"free_spots"`
	ScannedAt  *time.Time `json:"scanned_at"`
}

// GetLots handles the GET /api/lots request.
func (h *Handler) GetLots(c *gin.Context) {
	lots, err := h.store.ListLots(c.Request.Context())
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to retrieve lots")
		return
	}

	type aggRow struct {
		LotID  string
		Status model.SessionStatus
		Count  int64
	}
	var aggs []aggRow
	if err := h.store.DB().WithContext(c.Request.Context()).
		Model(&model.Session{}).
		Select("lot_id, status, COUNT(*) as count").
		Where("status <> ?", model.StatusExited).
		Group("lot_id, status").
		Scan(&aggs).Error; err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to aggregate sessions")
		return
	}

	responses := make(map[string]*LotResponse, len(lots))
	out := make([]*LotResponse, 0, len(lots))
	for _, l := range lots {
		resp := &LotResponse{ID: l.ID, Name: l.Name, TotalSpots: l.TotalSpots}
		if snap, ok := h.orch.Snapshot(l.ID); ok {
			free := len(snap.Free)
			scannedAt := snap.ScannedAt
			resp.FreeSpots = &free
			resp.ScannedAt = &scannedAt
		}
		responses[l.ID] = resp
		out = append(out, resp)
	}
	for _, a := range aggs {
		resp, ok := responses[a.LotID]
		if !ok {
			continue
		}
		switch a.Status {
		case model.StatusEntering:
			resp.Entering = a.Count
		case model.StatusParked:
			resp.Parked = a.Count
		}
	}
	successRes(c, http.StatusOK, out)
}

// GetOccupancy handles the GET /api/lots/{lot_id}/occupancy request.
func (h *Handler) GetOccupancy(c *gin.Context) {
	lotID := c.Param("lot_id")
	if !h.knownLot(lotID) {
		errorRes(c, http.StatusNotFound, "unknown lot")
		return
	}
	snap, ok := h.orch.Snapshot(lotID)
	if !ok {
		errorRes(c, http.StatusNotFound, "lot has not been scanned yet")
		return
	}
	successRes(c, http.StatusOK, snap)
}
