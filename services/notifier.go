package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Notification categories used across the engines.
const (
	NotifyCategoryBooking  = "booking"
	NotifyCategoryBilling  = "billing"
	NotifyCategoryLevel    = "level"
	NotifyCategoryBalance  = "balance"
	NotifyCategoryReminder = "reminder"
)

// Notifier is the fire-and-forget notification sink. Implementations must
// never fail the calling business operation: errors are swallowed after
// logging.
type Notifier interface {
	Notify(tenantID, userID uint, category, title, message, link string, details map[string]string)
}

// NotificationEvent is the payload published for the delivery workers
// (email/push fan-out happens outside this service).
type NotificationEvent struct {
	TenantID  uint              `json:"tenant_id"`
	UserID    uint              `json:"user_id"`
	Category  string            `json:"category"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Link      string            `json:"link,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// QueueNotifier publishes notification events to a durable RabbitMQ queue.
// It dials per publish so a broker restart never leaves a dead channel
// behind; the extra connection cost is irrelevant at notification volume.
type QueueNotifier struct {
	URL   string
	Queue string
}

func NewQueueNotifier(url string) *QueueNotifier {
	return &QueueNotifier{URL: url, Queue: "notifications"}
}

func (n *QueueNotifier) Notify(tenantID, userID uint, category, title, message, link string, details map[string]string) {
	event := NotificationEvent{
		TenantID:  tenantID,
		UserID:    userID,
		Category:  category,
		Title:     title,
		Message:   message,
		Link:      link,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}

	conn, err := amqp.Dial(n.URL)
	if err != nil {
		log.Printf("[Notify] rabbitmq dial failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("[Notify] channel open failed: %v", err)
		return
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(n.Queue, true, false, false, false, nil); err != nil {
		log.Printf("[Notify] queue declare failed: %v", err)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Notify] marshal failed: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx, "", n.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.CreatedAt,
		Body:         body,
	})
	if err != nil {
		log.Printf("[Notify] publish failed: %v", err)
	}
}

// LogNotifier writes notifications to the log only. Used when no broker is
// configured and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(tenantID, userID uint, category, title, message, link string, details map[string]string) {
	log.Printf("[Notify] tenant=%d user=%d %s: %s (%s)", tenantID, userID, category, title, message)
}
