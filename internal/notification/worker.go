package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"coffee-fleet-backend/internal/model"
)

// LowStockAlert reports that an item of a machine dropped below its threshold.
type LowStockAlert struct {
	MachineID int64
	Item      model.Item
	Count     int
	Threshold int
}

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

// WorkerPool manages a pool of workers for sending low-stock notifications.
type WorkerPool struct {
	size    int
	jobs    chan LowStockAlert
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan LowStockAlert, size*16), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case alert := <-wp.jobs:
			log.Printf("Worker %d processing low stock of %s on machine %d", id, alert.Item, alert.MachineID)
			wp.sendNotificationsForMachine(ctx, alert)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert without blocking the caller. Alerts are dropped
// when the queue is full; the ledger change they describe is already committed.
func (wp *WorkerPool) Dispatch(alert LowStockAlert) {
	select {
	case wp.jobs <- alert:
	default:
		log.Printf("Notification queue full; dropping low stock alert for machine %d (%s)", alert.MachineID, alert.Item)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan LowStockAlert {
	return wp.jobs
}

// sendNotificationsForMachine fetches subscriptions and sends notifications for a given machine.
func (wp *WorkerPool) sendNotificationsForMachine(ctx context.Context, alert LowStockAlert) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_machine_mapping smm ON smm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("smm.machine_id = ?", alert.MachineID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for machine %d: %v", alert.MachineID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	log.Printf("Sending %d notifications for machine %d", len(subscriptions), alert.MachineID)

	var machine model.Machine
	machineLabel := fmt.Sprintf("%d", alert.MachineID)
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&machine, alert.MachineID).Error; err != nil {
		log.Printf("Error fetching machine %d: %v", alert.MachineID, err)
	} else if machine.Name != "" {
		machineLabel = machine.Name
	}

	message := FormatAlert(machineLabel, alert)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// FormatAlert renders the push payload for an alert.
func FormatAlert(machineLabel string, alert LowStockAlert) string {
	return fmt.Sprintf("Low stock at %s: %s = %d (threshold %d)", machineLabel, alert.Item, alert.Count, alert.Threshold)
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
		if err := wp.db.WithContext(ctx).Select("Machines").Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
