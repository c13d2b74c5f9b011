package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/coverlane/services/claims/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Claim event types published to the queue
const (
	EventClaimSubmitted   = "claim.submitted"
	EventStatusChanged    = "claim.status_changed"
	EventPaymentProcessed = "claim.payment_processed"
)

// ClaimEvent is the semantic event emitted on every claim state change
type ClaimEvent struct {
	Type          string    `json:"type"`
	ClaimID       string    `json:"claim_id"`
	WalletAddress string    `json:"wallet_address"`
	PolicyType    string    `json:"policy_type,omitempty"`
	Status        string    `json:"status"`
	PayoutAmount  *float64  `json:"payout_amount,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher publishes claim events to the message queue
type EventPublisher interface {
	Publish(ctx context.Context, event ClaimEvent) error
	Close() error
}

// serviceBusPublisher implements EventPublisher on Azure Service Bus
type serviceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBusPublisher creates a new Azure Service Bus event publisher
func NewServiceBusPublisher(cfg config.AzureConfig) (EventPublisher, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	// Create the Service Bus client
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	// Create a sender for the queue
	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &serviceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
	}, nil
}

// Publish sends a claim event to the queue
func (p *serviceBusPublisher) Publish(ctx context.Context, event ClaimEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal claim event")
	}

	msg := &azservicebus.Message{
		Body: data,
		ApplicationProperties: map[string]interface{}{
			"event_type": event.Type,
			"time":       time.Now().UTC().Format(time.RFC3339),
		},
	}

	return p.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (p *serviceBusPublisher) Close() error {
	// Close the sender
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	// Close the client
	if p.client != nil {
		return p.client.Close(context.Background())
	}

	return nil
}

// MessageHandler processes one received claim event message
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage) error

// Processor receives claim events from the queue for the background worker
type Processor struct {
	client    *azservicebus.Client
	queueName string
}

// NewProcessor creates a new Service Bus queue processor
func NewProcessor(cfg config.AzureConfig) (*Processor, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	return &Processor{
		client:    client,
		queueName: cfg.QueueName,
	}, nil
}

// ProcessMessages receives messages in batches and dispatches them to the
// handler until the context is cancelled. Failed messages are abandoned back
// to the queue.
func (p *Processor) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	receiver, err := p.client.NewReceiverForQueue(p.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("Error receiving messages, retrying")
			time.Sleep(2 * time.Second)
			continue
		}

		for _, message := range messages {
			if err := handler(ctx, message); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing message")
				// Return the message to the queue
				if err := receiver.AbandonMessage(context.Background(), message, nil); err != nil {
					log.Error().Err(err).Msgf("(AbandonMessage) err: %v", err)
				}
				continue
			}

			if err := receiver.CompleteMessage(context.Background(), message, nil); err != nil {
				log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
			}
		}
	}
}

// Close closes the processor's Service Bus client
func (p *Processor) Close() error {
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}
