// Package channel turns a raw byte-exchange transport into a safe, ordered,
// timeout-aware command channel. It is the single concurrency gate per
// physical device: every operation, however many exchanges it needs, must
// run inside Atomic so that multi-exchange sequences never interleave.
package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/keycard-tech/hwlink/apdu"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultExchangeTimeout bounds one raw exchange.
	DefaultExchangeTimeout = 30 * time.Second
	// DefaultUnresponsiveTimeout is how long an exchange may pend before the
	// unresponsive notification fires.
	DefaultUnresponsiveTimeout = 15 * time.Second
)

// ErrBusy means a second logical operation was attempted while one was in
// flight. Operations are never queued.
var ErrBusy = errors.New("channel: operation already in flight")

// ErrExchangeTimeout means the device did not answer within the exchange
// timeout. The link state is undefined afterwards.
var ErrExchangeTimeout = errors.New("channel: exchange timed out")

// Transport is the opaque byte-exchange primitive the channel drives. One
// call of Exchange is one request/response round trip at the link layer.
type Transport interface {
	Exchange(command []byte) ([]byte, error)
	Close() error
}

// Channel sequences exchanges against one transport.
type Channel struct {
	tr       Transport
	notifier *Notifier

	busy atomic.Bool

	exchangeTimeout     atomic.Int64 // nanoseconds
	unresponsiveTimeout atomic.Int64
}

// New wraps a transport. The notifier may be nil when no observer cares.
func New(tr Transport, notifier *Notifier) *Channel {
	c := &Channel{tr: tr, notifier: notifier}
	c.exchangeTimeout.Store(int64(DefaultExchangeTimeout))
	c.unresponsiveTimeout.Store(int64(DefaultUnresponsiveTimeout))
	return c
}

// SetExchangeTimeout configures the hard per-exchange timeout. Non-positive
// durations are ignored.
func (c *Channel) SetExchangeTimeout(d time.Duration) {
	if d > 0 {
		c.exchangeTimeout.Store(int64(d))
	}
}

// SetUnresponsiveTimeout configures the observational timeout. Non-positive
// durations are ignored.
func (c *Channel) SetUnresponsiveTimeout(d time.Duration) {
	if d > 0 {
		c.unresponsiveTimeout.Store(int64(d))
	}
}

// Notifier returns the observer registry this channel emits into.
func (c *Channel) Notifier() *Notifier {
	return c.notifier
}

// Close closes the underlying transport.
func (c *Channel) Close() error {
	return c.tr.Close()
}

// Send performs one exchange of cla|ins|p1|p2|len|data, validates the
// trailing status word and returns the response without it. The default
// acceptable status is OK; pass more to tolerate protocol-specific words.
func (c *Channel) Send(ctx context.Context, cla, ins, p1, p2 byte, data []byte, accepted ...apdu.Status) ([]byte, error) {
	raw, err := apdu.Command{Cla: cla, Ins: ins, P1: p1, P2: p2, Data: data}.Bytes()
	if err != nil {
		return nil, err
	}

	log.Trace().Msgf("channel: -> %s", hexutil.Bytes(raw))

	resp, err := c.exchange(ctx, raw)
	if err != nil {
		return nil, err
	}

	log.Trace().Msgf("channel: <- %s", hexutil.Bytes(resp))

	if len(resp) < 2 {
		return nil, errors.New("channel: response shorter than a status word")
	}
	status := apdu.Status(uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1]))
	payload := resp[:len(resp)-2]

	if len(accepted) == 0 {
		accepted = []apdu.Status{apdu.StatusOK}
	}
	for _, a := range accepted {
		if status == a {
			return payload, nil
		}
	}

	log.Debug().Msgf("channel: device rejected command: %s (0x%04x)", status.Name(), uint16(status))
	return nil, apdu.NewStatusError(status)
}

// exchange runs one transport round trip under the hard exchange timeout.
// The transport itself has no mid-packet abort; on timeout the pending call
// is abandoned, not interrupted.
func (c *Channel) exchange(ctx context.Context, raw []byte) ([]byte, error) {
	type result struct {
		resp []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := c.tr.Exchange(raw)
		done <- result{resp, err}
	}()

	timer := time.NewTimer(time.Duration(c.exchangeTimeout.Load()))
	defer timer.Stop()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrExchangeTimeout
	}
}

// Atomic runs op as the channel's single in-flight logical operation. A
// second call while one is pending fails immediately with ErrBusy. The busy
// flag is released on every exit path. While op runs, an unresponsiveness
// watchdog emits observational events.
func (c *Channel) Atomic(ctx context.Context, op func(ctx context.Context) error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	stop := c.watchResponsiveness()
	defer stop()

	return op(ctx)
}

// watchResponsiveness starts the unresponsive timer. The returned stop
// function cancels it and, if the timer already fired, emits the responsive
// event.
func (c *Channel) watchResponsiveness() func() {
	fired := make(chan struct{})
	quit := make(chan struct{})

	timer := time.NewTimer(time.Duration(c.unresponsiveTimeout.Load()))

	go func() {
		defer timer.Stop()
		select {
		case <-timer.C:
			log.Debug().Msg("channel: device unresponsive")
			c.notifier.Notify(Event{Kind: EventUnresponsive})
			close(fired)
		case <-quit:
		}
	}()

	return func() {
		close(quit)
		select {
		case <-fired:
			c.notifier.Notify(Event{Kind: EventResponsive})
		default:
		}
	}
}

// Bulk applies a sequence of raw commands one at a time inside a single
// atomic operation, stopping at the first non-OK status. Cancellation is
// cooperative: it only prevents starting the next exchange.
func (c *Channel) Bulk(ctx context.Context, commands [][]byte) ([][]byte, error) {
	var replies [][]byte

	err := c.Atomic(ctx, func(ctx context.Context) error {
		for i, raw := range commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			resp, err := c.exchange(ctx, raw)
			if err != nil {
				return err
			}
			if len(resp) < 2 {
				return errors.New("channel: response shorter than a status word")
			}
			status := apdu.Status(uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1]))
			if status != apdu.StatusOK {
				log.Debug().Msgf("channel: bulk stopped at command %d: %s", i, status.Name())
				return apdu.NewStatusError(status)
			}
			replies = append(replies, resp[:len(resp)-2])
		}
		return nil
	})
	if err != nil {
		return replies, err
	}
	return replies, nil
}
