package remote

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Conn is the part of a NATS connection Remote uses, so tests can stand in
// for a server.
type Conn interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subject string, data []byte) error
	Close()
}

// natsConnAdapter adapts *nats.Conn to Conn
type natsConnAdapter struct {
	conn *nats.Conn
}

func (a *natsConnAdapter) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	return a.conn.Subscribe(subject, cb)
}

func (a *natsConnAdapter) Publish(subject string, data []byte) error {
	return a.conn.Publish(subject, data)
}

func (a *natsConnAdapter) Close() {
	a.conn.Close()
}

// Connect dials a NATS server, trying up to attempts times wait apart.
func Connect(url string, attempts int, wait time.Duration) (Conn, error) {
	logger := slog.Default().With("natsURL", url)

	var nc *nats.Conn
	var err error
	for i := range max(attempts, 1) {
		nc, err = nats.Connect(url, nats.Name("i2sstream"))
		if err == nil {
			break
		}
		logger.Warn(
			"failed to connect to NATS",
			"attempt", i+1,
			"attempts", attempts,
			"err", err,
		)
		time.Sleep(wait)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", attempts, err)
	}

	logger.Info("connected to NATS")
	return &natsConnAdapter{conn: nc}, nil
}
