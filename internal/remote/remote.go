package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/stream"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const commandTimeout = 2 * time.Second

var errUnknownCommand = errors.New("unknown command")

// Target is the control surface of a stream, as implemented by
// *stream.Controller.
type Target interface {
	ID() string
	Play() error
	Pause() error
	Resume() error
	Stop() error
	Status() stream.Status
}

// Executor serializes calls into the stream with its service ticks, as
// *scheduler.Scheduler does.
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

// Sent on <prefix>.<stream id>.control, e.g. {"command": "pause"}.
type ControlMessage struct {
	Command string `json:"command"`
}

// Reply to a ControlMessage, with the status after the command ran.
type ControlReply struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Status stream.Status `json:"status"`
}

// Remote exposes one stream's control surface over NATS: commands on the
// control subject, and status published on the status subject.
type Remote struct {
	logger *slog.Logger
	uuid   uuid.UUID

	conn     Conn
	target   Target
	executor Executor

	controlSubject string
	statusSubject  string
}

func New(conn Conn, prefix string, target Target, executor Executor) *Remote {
	uuid := uuid.New()
	base := fmt.Sprintf("%s.%s", prefix, target.ID())
	return &Remote{
		logger: slog.Default().With(
			"remote uuid", uuid,
			"subject", base,
		),
		uuid:           uuid,
		conn:           conn,
		target:         target,
		executor:       executor,
		controlSubject: base + ".control",
		statusSubject:  base + ".status",
	}
}

func (r *Remote) ControlSubject() string {
	return r.controlSubject
}

func (r *Remote) StatusSubject() string {
	return r.statusSubject
}

// Start subscribes to the control subject.
func (r *Remote) Start() error {
	if _, err := r.conn.Subscribe(r.controlSubject, r.handleControl); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.controlSubject, err)
	}
	r.logger.Info("listening for commands", "controlSubject", r.controlSubject)
	return nil
}

func (r *Remote) handleControl(msg *nats.Msg) {
	var control ControlMessage
	var err error
	if err = json.Unmarshal(msg.Data, &control); err != nil {
		err = fmt.Errorf("malformed control message: %w", err)
	} else {
		err = r.execute(control.Command)
	}

	var reply ControlReply
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	statusErr := r.executor.Do(ctx, func() error {
		reply.Status = r.target.Status()
		return nil
	})
	err = errors.Join(err, statusErr)

	reply.OK = err == nil
	if err != nil {
		reply.Error = err.Error()
		r.logger.Warn("command failed", "command", control.Command, "err", err)
	} else {
		r.logger.Info("command executed", "command", control.Command, "state", reply.Status.State)
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		r.logger.Error("could not marshal reply", "err", err)
		return
	}
	if err := r.conn.Publish(msg.Reply, data); err != nil {
		r.logger.Error("could not publish reply", "reply", msg.Reply, "err", err)
	}
}

func (r *Remote) execute(command string) error {
	var op func() error
	switch command {
	case "play":
		op = r.target.Play
	case "pause":
		op = r.target.Pause
	case "resume":
		op = r.target.Resume
	case "stop":
		op = r.target.Stop
	case "status":
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownCommand, command)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return r.executor.Do(ctx, op)
}

// PublishStatus publishes the current status on the status subject.
func (r *Remote) PublishStatus(ctx context.Context) error {
	var status stream.Status
	if err := r.executor.Do(ctx, func() error {
		status = r.target.Status()
		return nil
	}); err != nil {
		return err
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("could not marshal status: %w", err)
	}
	return r.conn.Publish(r.statusSubject, data)
}

// Run publishes the status every interval until ctx is canceled, then
// publishes it once more.
func (r *Remote) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			if err := r.PublishStatus(final); err != nil {
				r.logger.Warn("could not publish final status", "err", err)
			}
			return nil
		case <-ticker.C:
			if err := r.PublishStatus(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("could not publish status", "err", err)
			}
		}
	}
}

func (r *Remote) Close() {
	r.logger.Debug("shutdown called")
	r.conn.Close()
}
