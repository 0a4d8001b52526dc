package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys on the clip export exchange.
const (
	ExportRoutingKey = "clip.export"
	StatusRoutingKey = "clip.status"
)

// Topology names the exchange and queues of the clip export flow.
type Topology struct {
	Exchange    string
	ExportQueue string
	StatusQueue string
	DLQ         string
}

// Declare creates the exchange and queues and binds them. It is idempotent.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, q := range []string{t.ExportQueue, t.StatusQueue, t.DLQ} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}
	if err := ch.QueueBind(t.ExportQueue, ExportRoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind export queue: %w", err)
	}
	if err := ch.QueueBind(t.StatusQueue, StatusRoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind status queue: %w", err)
	}
	return nil
}
