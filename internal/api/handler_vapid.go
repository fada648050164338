package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		errorRes(c, http.StatusServiceUnavailable, "vapid keys are not configured")
		return
	}

	successRes(c, http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}

// GetLive upgrades the request to a websocket that streams orchestrator events.
func (h *Handler) GetLive(c *gin.Context) {
	if h.hub == nil {
		errorRes(c, http.StatusServiceUnavailable, "live updates are disabled")
		return
	}
	h.hub.Serve(c.Writer, c.Request)
}
