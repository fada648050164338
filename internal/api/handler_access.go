package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"parkvision-backend/internal/mw"
	"parkvision-backend/internal/parse"
)

// GetAllowed handles the GET /api/allowed request.
func (h *Handler) GetAllowed(c *gin.Context) {
	plates, err := h.orch.Gate().List(c.Request.Context())
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to retrieve allowed plates")
		return
	}
	successRes(c, http.StatusOK, plates)
}

type allowedRequest struct {
	Plate string `json:"plate" binding:"required"`
}

// PostAllowed handles the POST /api/allowed request.
func (h *Handler) PostAllowed(c *gin.Context) {
	var req allowedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return
	}
	plate := parse.Plate(req.Plate)
	if parse.IsUnreadable(plate) {
		errorRes(c, http.StatusBadRequest, "plate is empty")
		return
	}

	added, err := h.orch.Gate().Add(c.Request.Context(), plate)
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to add plate")
		return
	}
	code := http.StatusOK
	if added {
		log.Printf("Plate %s added to the allow list by %s", plate, c.GetString(mw.SubjectKey))
		code = http.StatusCreated
	}
	successRes(c, code, gin.H{"plate": plate, "added": added})
}

// DeleteAllowed handles the DELETE /api/allowed/{plate} request.
func (h *Handler) DeleteAllowed(c *gin.Context) {
	plate := parse.Plate(c.Param("plate"))
	removed, err := h.orch.Gate().Remove(c.Request.Context(), plate)
	if err != nil {
		errorRes(c, http.StatusInternalServerError, "failed to remove plate")
		return
	}
	if !removed {
		errorRes(c, http.StatusNotFound, "plate is not on the allow list")
		return
	}
	successRes(c, http.StatusOK, gin.H{"plate": plate})
}

// GetSecurity handles the GET /api/security request.
func (h *Handler) GetSecurity(c *gin.Context) {
	successRes(c, http.StatusOK, gin.H{"enabled": h.orch.Gate().Enabled()})
}

type securityRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// PutSecurity handles the PUT /api/security request.
func (h *Handler) PutSecurity(c *gin.Context) {
	var req securityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return
	}
	h.orch.Gate().SetEnabled(*req.Enabled)
	log.Printf("Access control set to %t by %s", *req.Enabled, c.GetString(mw.SubjectKey))
	successRes(c, http.StatusOK, gin.H{"enabled": *req.Enabled})
}
