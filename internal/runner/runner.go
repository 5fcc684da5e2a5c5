package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/internal/remote"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/scheduler"
	"github.com/Honorable-Knights-of-the-Roundtable/i2sstream/pkg/stream"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	TickInterval time.Duration

	// Remote control is off when Conn is nil.
	Conn           remote.Conn
	Subject        string
	StatusInterval time.Duration
}

// Run starts ctrl and drives it until it finishes or ctx is canceled, then
// closes it. Canceling ctx is a normal way to end a stream and is not
// reported as an error.
func Run(ctx context.Context, ctrl *stream.Controller, opts Options) (stream.Status, error) {
	logger := slog.Default().With("stream uuid", ctrl.ID())

	sched, err := scheduler.New(opts.TickInterval)
	if err != nil {
		ctrl.Close()
		return ctrl.Status(), err
	}

	// Prefill so the first service tick has samples to hand over.
	if _, err := ctrl.Pump(); err != nil {
		ctrl.Close()
		return ctrl.Status(), err
	}
	if err := ctrl.Play(); err != nil {
		ctrl.Close()
		return ctrl.Status(), err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := sched.Run(gctx, ctrl)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	var r *remote.Remote
	if opts.Conn != nil {
		r = remote.New(opts.Conn, opts.Subject, ctrl, sched)
		if err := r.Start(); err != nil {
			cancel()
			g.Wait()
			r.Close()
			ctrl.Close()
			return ctrl.Status(), err
		}
		g.Go(func() error {
			return r.Run(gctx, opts.StatusInterval)
		})
	}

	err = g.Wait()
	if r != nil {
		r.Close()
	}
	status := ctrl.Status()
	logger.Info(
		"stream ended",
		"state", status.State,
		"bytesTransferred", status.BytesTransferred,
		"underruns", status.UnderrunCount,
		"overruns", status.OverrunCount,
	)
	return status, errors.Join(err, ctrl.Close())
}
