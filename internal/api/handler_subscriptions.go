package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parkvision-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint       string   `json:"endpoint" binding:"required"`
	P256DH         string   `json:"p256dh" binding:"required"`
	Auth           string   `json:"auth" binding:"required"`
	SubscribedLots []string `json:"subscribed_lots"`
}

// PutSubscription creates or replaces a subscription and the lots it follows.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}

	err := h.store.DB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Omit("Lots").Create(&subscription).Error; err != nil {
			return err
		}

		lots := []*model.Lot{}
		if len(req.SubscribedLots) > 0 {
			if err := tx.Where("id IN ?", req.SubscribedLots).Find(&lots).Error; err != nil {
				return err
			}
		}

		return tx.Model(&subscription).Association("Lots").Replace(lots)
	})

	if err != nil {
		errorRes(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription removes a subscription and its lot mappings.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorRes(c, http.StatusBadRequest, err.Error())
		return
	}

	sub := model.PushSubscription{Endpoint: req.Endpoint}
	if err := h.store.DB().WithContext(c.Request.Context()).Select("Lots").Delete(&sub).Error; err != nil {
		errorRes(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam reads key without URL decoding; push endpoints are stored as sent.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription returns the lots a subscription follows.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		errorRes(c, http.StatusBadRequest, "endpoint is required")
		return
	}

	var subscription model.PushSubscription
	if err := h.store.DB().WithContext(c.Request.Context()).Preload("Lots").First(&subscription, "endpoint = ?", raw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			errorRes(c, http.StatusNotFound, "subscription not found")
		} else {
			errorRes(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	lotIDs := make([]string, len(subscription.Lots))
	for i, lot := range subscription.Lots {
		lotIDs[i] = lot.ID
	}

	successRes(c, http.StatusOK, gin.H{"subscribed_lots": lotIDs})
}
