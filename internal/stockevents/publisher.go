package stockevents

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/packfinderz-inventory/internal/ledger"
	"github.com/angelmondragon/packfinderz-inventory/pkg/db/models"
	"github.com/angelmondragon/packfinderz-inventory/pkg/logger"
	"github.com/google/uuid"
)

const (
	// EventQuantityChanged is published after every committed on-hand change.
	EventQuantityChanged = "stock.quantity_changed"
	// EventBelowMinimum is published when on-hand stock falls under the reorder threshold.
	EventBelowMinimum = "stock.below_minimum"

	defaultPublishTimeout = 5 * time.Second
)

// Event is the JSON payload of a stock level message.
type Event struct {
	EventID     string    `json:"eventId"`
	EventType   string    `json:"eventType"`
	ItemID      uuid.UUID `json:"itemId"`
	LocationID  uuid.UUID `json:"locationId"`
	Quantity    int       `json:"quantity"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
	MinQuantity int       `json:"minQuantity"`
	Version     int64     `json:"version"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

// Publisher forwards committed quantity changes to Pub/Sub.
// It satisfies ledger.QuantityNotifier.
type Publisher struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
	queue   *ledger.Dispatcher
}

// NewPublisher wraps a topic publisher handle.
func NewPublisher(p *gcppubsub.Publisher, logg *logger.Logger) (*Publisher, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return newPublisher(&gcpPublisher{Publisher: p}, logg)
}

func newPublisher(pub publisher, logg *logger.Logger) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	p := &Publisher{
		pub:     pub,
		logg:    logg,
		timeout: defaultPublishTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	p.queue = ledger.NewDispatcher(p.publishRecord, ledger.DispatcherOptions{})
	return p, nil
}

// QuantityChanged publishes in the background, in version order per stock
// record; failures are logged, never returned.
func (p *Publisher) QuantityChanged(ctx context.Context, record models.StockRecord) {
	p.queue.QuantityChanged(ctx, record)
}

// Wait blocks until queued publishes finish.
func (p *Publisher) Wait() {
	p.queue.Wait()
}

func (p *Publisher) publishRecord(ctx context.Context, record models.StockRecord) {
	for _, event := range p.eventsFor(record) {
		p.publish(ctx, event)
	}
}

func (p *Publisher) eventsFor(record models.StockRecord) []Event {
	base := Event{
		ItemID:      record.ItemID,
		LocationID:  record.LocationID,
		Quantity:    record.Quantity,
		Reserved:    record.ReservedQuantity,
		Available:   record.AvailableQuantity(),
		MinQuantity: record.MinQuantity,
		Version:     record.Version,
		OccurredAt:  record.UpdatedAt.UTC(),
	}
	if record.UpdatedAt.IsZero() {
		base.OccurredAt = p.now()
	}

	changed := base
	changed.EventID = uuid.NewString()
	changed.EventType = EventQuantityChanged
	events := []Event{changed}

	if record.BelowMinimum() {
		low := base
		low.EventID = uuid.NewString()
		low.EventType = EventBelowMinimum
		events = append(events, low)
	}
	return events
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	ctx = p.logg.WithFields(ctx, map[string]any{
		"event_id":    event.EventID,
		"event_type":  event.EventType,
		"item_id":     event.ItemID.String(),
		"location_id": event.LocationID.String(),
	})

	data, err := json.Marshal(event)
	if err != nil {
		p.logg.Error(ctx, "stockevents.marshal_failed", err)
		return
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":    event.EventID,
			"event_type":  event.EventType,
			"item_id":     event.ItemID.String(),
			"location_id": event.LocationID.String(),
			"version":     strconv.FormatInt(event.Version, 10),
		},
		OrderingKey: event.ItemID.String() + ":" + event.LocationID.String(),
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	result := p.pub.Publish(publishCtx, msg)
	if result == nil {
		p.logg.Error(ctx, "stockevents.publish_failed", errors.New("publisher returned nil result"))
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		p.logg.Error(ctx, "stockevents.publish_failed", err)
		return
	}
	p.logg.Info(ctx, "stockevents.published")
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{
		PublishResult: p.Publisher.Publish(ctx, msg),
		resume:        func() { p.Publisher.ResumePublish(msg.OrderingKey) },
	}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
	resume func()
}

// Get unpauses the ordering key after a failure so later changes to the same
// stock record are not rejected.
func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.PublishResult.Get(ctx)
	if err != nil && r.resume != nil {
		r.resume()
	}
	return id, err
}
