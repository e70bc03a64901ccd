// Package notify publishes invoice lifecycle events to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/pkg/logger"
)

// Event is one lifecycle notification, keyed by invoice id so per-invoice
// ordering holds within a partition.
type Event struct {
	Type         string    `json:"type"`
	InvoiceID    string    `json:"invoiceId"`
	ContractorID string    `json:"contractorId"`
	Reason       string    `json:"reason,omitempty"`
	Approvals    int       `json:"approvals,omitempty"`
	Required     int       `json:"required,omitempty"`
	PaidAt       time.Time `json:"paidAt,omitzero"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// KafkaNotifier buffers events in a channel and writes them from a background
// goroutine. Publishing never blocks the request path: when the buffer is full
// the event is dropped and logged.
type KafkaNotifier struct {
	writer *kafka.Writer
	events chan Event
	done   chan struct{}
	log    *logger.Logger
}

var _ payments.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier builds the notifier and starts its writer loop. Returns a
// no-op-backed notifier when no brokers are configured.
func NewKafkaNotifier(brokers []string, topic string, log *logger.Logger) *KafkaNotifier {
	n := &KafkaNotifier{
		events: make(chan Event, 256),
		done:   make(chan struct{}),
		log:    log,
	}
	if len(brokers) > 0 {
		n.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		}
	}
	go n.run()
	return n
}

// InvoiceRejected publishes a rejection event.
func (n *KafkaNotifier) InvoiceRejected(invoiceID, contractorID, reason string) {
	n.publish(Event{Type: "invoice.rejected", InvoiceID: invoiceID, ContractorID: contractorID, Reason: reason})
}

// InvoiceApproved publishes an approval event with the quorum progress.
func (n *KafkaNotifier) InvoiceApproved(invoiceID, contractorID string, approvals, required int) {
	n.publish(Event{Type: "invoice.approved", InvoiceID: invoiceID, ContractorID: contractorID, Approvals: approvals, Required: required})
}

// InvoicePaid publishes a settlement event.
func (n *KafkaNotifier) InvoicePaid(invoiceID, contractorID string, paidAt time.Time) {
	n.publish(Event{Type: "invoice.paid", InvoiceID: invoiceID, ContractorID: contractorID, PaidAt: paidAt})
}

// PaymentFailed publishes a payment failure event.
func (n *KafkaNotifier) PaymentFailed(invoiceID, contractorID, reason string) {
	n.publish(Event{Type: "payment.failed", InvoiceID: invoiceID, ContractorID: contractorID, Reason: reason})
}

func (n *KafkaNotifier) publish(e Event) {
	e.OccurredAt = time.Now()
	select {
	case n.events <- e:
	default:
		n.log.Warn().Str("type", e.Type).Str("invoice_id", e.InvoiceID).Msg("notification buffer full, event dropped")
	}
}

func (n *KafkaNotifier) run() {
	for e := range n.events {
		if n.writer == nil {
			continue
		}
		payload, err := json.Marshal(e)
		if err != nil {
			n.log.Error().Err(err).Msg("marshal notification")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = n.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(e.InvoiceID),
			Value: payload,
		})
		cancel()
		if err != nil {
			n.log.Error().Err(err).Str("type", e.Type).Msg("publish notification")
		}
	}
	close(n.done)
}

// Close drains the buffer and shuts the writer down.
func (n *KafkaNotifier) Close() error {
	close(n.events)
	<-n.done
	if n.writer != nil {
		return n.writer.Close()
	}
	return nil
}
