package events

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"apotekku/backend/internal/domain"
)

const SaleCompleted = "sale.completed"

// Publisher fans committed sales out to other processes. Publishing happens
// after the commit, so a failure never undoes a sale.
type Publisher interface {
	PublishSale(ctx context.Context, event domain.SaleEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishSale(_ context.Context, _ domain.SaleEvent) error {
	return nil
}

// RedisPublisher sends each event to "<channel>:<type>" and to the shared
// "<channel>" feed.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "apotekku:events"
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) PublishSale(ctx context.Context, event domain.SaleEvent) error {
	if event.Type == "" {
		event.Type = SaleCompleted
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel+":"+event.Type, payload).Err(); err != nil {
		return fmt.Errorf("publish sale event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// FromSale builds the event for a committed sale.
func FromSale(sale domain.Sale) domain.SaleEvent {
	batchIDs := make([]string, 0, len(sale.Items))
	seen := make(map[string]struct{}, len(sale.Items))
	for _, item := range sale.Items {
		if _, ok := seen[item.BatchID]; ok {
			continue
		}
		seen[item.BatchID] = struct{}{}
		batchIDs = append(batchIDs, item.BatchID)
	}
	return domain.SaleEvent{
		Type:          SaleCompleted,
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		CustomerID:    sale.CustomerID,
		TotalAmount:   sale.TotalAmount,
		PaymentMethod: sale.PaymentMethod,
		BatchIDs:      batchIDs,
		OccurredAt:    sale.CreatedAt,
	}
}
