package event

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
)

// SessionCompleted is the routing key for the one event the engine emits per
// finished session. Notification and analytics collaborators consume it
// asynchronously; the engine never talks to those subsystems directly.
const SessionCompleted = "session.completed"

// SessionCompletedEvent is the payload broadcast when a session completes.
type SessionCompletedEvent struct {
	SessionID        string  `json:"session_id"`
	UserID           string  `json:"user_id"`
	CaseID           string  `json:"case_id"`
	PercentageScore  float64 `json:"percentage_score"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
	CompletedAt      int64   `json:"completed_at"`
}

type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// PublishSessionCompleted emits the completion event. Failures are the
// caller's to log; completion itself is already durable by the time this
// runs.
func (p *Publisher) PublishSessionCompleted(evt SessionCompletedEvent) error {
	if evt.CompletedAt == 0 {
		evt.CompletedAt = time.Now().Unix()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.channel.Publish(
		p.exchange,
		SessionCompleted,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
