package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"parkvision-backend/internal/model"
	"parkvision-backend/internal/parking"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// AlertKind is the occupancy change a subscriber is told about.
type AlertKind string

const (
	AlertLotFull       AlertKind = "lot_full"
	AlertSpotAvailable AlertKind = "spot_available"
)

// Alert is one notification job for the subscribers of a lot.
type Alert struct {
	LotID string
	Kind  AlertKind
	Free  int
}

// AlertFor derives the alert, if any, for a scan. Only the edges between a
// full lot and a lot with room produce one.
func AlertFor(res *parking.ScanResult) (Alert, bool) {
	if res == nil || res.PreviousFreeCount < 0 {
		return Alert{}, false
	}
	free := len(res.Free)
	switch {
	case res.PreviousFreeCount > 0 && free == 0:
		return Alert{LotID: res.LotID, Kind: AlertLotFull}, true
	case res.PreviousFreeCount == 0 && free > 0:
		return Alert{LotID: res.LotID, Kind: AlertSpotAvailable, Free: free}, true
	}
	return Alert{}, false
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Alert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Alert, size),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing %s alert for lot %s", id, alert.Kind, alert.LotID)
			wp.sendNotificationsForLot(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(alert Alert) {
	wp.jobs <- alert
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Alert {
	return wp.jobs
}

// Notify implements parking.Notifier. Scan events that cross the full/free
// edge are queued; the alert is dropped when every worker is busy.
func (wp *WorkerPool) Notify(ev parking.Event) {
	if ev.Type != parking.EventScan {
		return
	}
	alert, ok := AlertFor(ev.Scan)
	if !ok {
		return
	}
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("Notification queue full, dropping %s alert for lot %s", alert.Kind, alert.LotID)
	}
}

func (wp *WorkerPool) sendNotificationsForLot(ctx context.Context, alert Alert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_lot_mapping slm ON slm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("slm.lot_id = ?", alert.LotID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for lot %s: %v", alert.LotID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for lot %s", len(subscriptions), alert.LotID)

	var lot model.Lot
	lotLabel := alert.LotID
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&lot, "id = ?", alert.LotID).Error; err != nil {
		log.Printf("Error fetching lot %s: %v", alert.LotID, err)
	} else if lot.Name != "" {
		lotLabel = lot.Name
	}

	message := alertMessage(alert, lotLabel)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

func alertMessage(alert Alert, lotLabel string) string {
	if alert.Kind == AlertLotFull {
		return fmt.Sprintf("%s is full.", lotLabel)
	}
	return fmt.Sprintf("%s has %d free spot(s).", lotLabel, alert.Free)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Select("Lots").Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
