package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/metrics"
	"gowa-gateway/internal/model"
	"gowa-gateway/internal/ws"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types"
)

var (
	ErrNotReady      = errors.New("whatsapp client is not ready")
	ErrNotRegistered = errors.New("number is not registered on whatsapp")
)

const DefaultRetryDelay = 5 * time.Second

// Client is the automation client the session drives. Start must return once
// the connection attempt is made; progress is reported through the handler.
type Client interface {
	AddEventHandler(handler func(model.LifecycleEvent))
	Start(ctx context.Context) error
	Stop()
	IsAuthenticated() bool
	IsRegistered(ctx context.Context, jid types.JID) (bool, error)
	Send(ctx context.Context, jid types.JID, body string) (model.SendResult, error)
}

type Option func(*Session)

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithRetry sets the re-initialize delay and the cap on consecutive attempts (0 = unbounded).
func WithRetry(delay time.Duration, maxAttempts int) Option {
	return func(s *Session) {
		s.retryDelay = delay
		s.maxAttempts = maxAttempts
	}
}

func WithRealtime(p ws.RealtimePublisher) Option {
	return func(s *Session) { s.realtime = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithQROutput sets where pairing QR codes are drawn; nil disables drawing.
func WithQROutput(w io.Writer) Option {
	return func(s *Session) { s.qrOut = w }
}

// Session owns the single WhatsApp client and keeps the readiness flag in
// step with its lifecycle events.
type Session struct {
	client      Client
	clock       clockwork.Clock
	log         zerolog.Logger
	realtime    ws.RealtimePublisher
	metrics     *metrics.Metrics
	qrOut       io.Writer
	retryDelay  time.Duration
	maxAttempts int

	ready atomic.Bool

	mu            sync.Mutex
	ctx           context.Context
	state         model.State
	authenticated bool
	// menahan fallback ke kredensial client sampai pairing berikutnya
	authFailed    bool
	attempts      int
	retry         clockwork.Timer
	stopped       bool

	// serializes calls into the client from concurrent requests
	sendMu sync.Mutex
}

func NewSession(client Client, opts ...Option) *Session {
	s := &Session{
		client:     client,
		clock:      clockwork.NewRealClock(),
		log:        zerolog.Nop(),
		qrOut:      os.Stdout,
		retryDelay: DefaultRetryDelay,
		ctx:        context.Background(),
		state:      model.StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	client.AddEventHandler(s.HandleEvent)
	return s
}

// Start kicks off the first initialize attempt in the background.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.stopped = false
	s.mu.Unlock()

	go s.initialize()
}

// Stop cancels any pending retry and disconnects the client.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.mu.Unlock()

	s.client.Stop()
	s.ready.Store(false)
	s.metrics.SetReady(false)
}

func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Authenticated reports whether the client currently holds usable
// credentials. A rejected login stays false until a new pairing succeeds.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	authenticated, failed := s.authenticated, s.authFailed
	s.mu.Unlock()
	if failed {
		return false
	}
	return authenticated || s.client.IsAuthenticated()
}

func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) initialize() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.retry = nil
	ctx := s.ctx
	if s.state == model.StateUninitialized || s.state == model.StateDisconnected {
		s.setStateLocked(model.StateAwaitingAuth, "initialize")
	}
	s.mu.Unlock()

	s.log.Info().Msg("Initializing WhatsApp client")
	err := s.client.Start(ctx)

	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		// Stop jalan saat Start masih berjalan, tutup lagi koneksinya
		s.client.Stop()
		return
	}

	if err != nil {
		s.log.Error().Err(err).Msg("Failed to initialize client")
		s.publishError("INIT_FAILED", err.Error())

		s.mu.Lock()
		s.setStateLocked(model.StateDisconnected, err.Error())
		s.scheduleRetryLocked()
		s.mu.Unlock()
	}
}

// scheduleRetryLocked arms the one-shot re-initialize timer. At most one
// retry is pending at any time.
func (s *Session) scheduleRetryLocked() {
	if s.stopped || s.retry != nil {
		return
	}
	if s.maxAttempts > 0 && s.attempts >= s.maxAttempts {
		s.log.Error().Int("attempts", s.attempts).Msg("Giving up re-initializing WhatsApp client")
		s.publishError("RETRY_EXHAUSTED", fmt.Sprintf("gave up after %d attempts", s.attempts))
		return
	}
	s.attempts++
	s.metrics.IncReinitialize()
	s.log.Info().
		Int("attempt", s.attempts).
		Dur("delay", s.retryDelay).
		Msg("Scheduling client re-initialization")
	s.retry = s.clock.AfterFunc(s.retryDelay, s.initialize)
}

// HandleEvent applies one lifecycle event. It is registered on the client in NewSession.
func (s *Session) HandleEvent(evt model.LifecycleEvent) {
	switch evt.Kind {
	case model.EventQR:
		s.log.Info().Msg("QR Code received, scan it with your phone")
		if s.qrOut != nil {
			helper.RenderQR(s.qrOut, evt.QRCode)
		}
		if s.realtime != nil {
			now := time.Now().UTC()
			s.realtime.Publish(ws.WsEvent{
				Event:     ws.EventQRGenerated,
				Timestamp: now,
				Data: ws.QRGeneratedData{
					QRData:    evt.QRCode,
					ExpiresAt: now.Add(evt.QRTimeout),
				},
			})
		}
		return

	case model.EventAuthenticated:
		s.log.Info().Msg("Authentication successful")

	case model.EventReady:
		s.log.Info().Msg("Client is ready")

	case model.EventAuthFailure:
		s.log.Error().Str("reason", evt.Reason).Msg("Authentication failed")
		s.publishError("AUTH_FAILURE", evt.Reason)

	case model.EventDisconnected:
		s.log.Warn().Str("reason", evt.Reason).Msg("Client was disconnected")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.state.Next(evt.Kind)
	if !ok {
		s.log.Debug().
			Str("state", s.state.String()).
			Str("event", evt.Kind.String()).
			Msg("Ignoring lifecycle event")
		return
	}

	switch evt.Kind {
	case model.EventAuthenticated:
		s.authenticated = true
		s.authFailed = false
	case model.EventReady:
		s.authenticated = true
		s.authFailed = false
		s.attempts = 0
	case model.EventAuthFailure:
		s.authenticated = false
		s.authFailed = true
	case model.EventDisconnected:
		// device di-unlink dari HP: store sudah dihapus, perlu scan QR lagi
		if !s.client.IsAuthenticated() {
			s.authenticated = false
		}
	}
	s.setStateLocked(next, evt.Reason)

	// auth failure sengaja tidak di-retry, operator harus scan ulang / restart
	if evt.Kind == model.EventDisconnected {
		s.scheduleRetryLocked()
	}
}

func (s *Session) setStateLocked(next model.State, reason string) {
	prev := s.state
	s.state = next
	ready := next == model.StateReady
	s.ready.Store(ready)
	s.metrics.SetReady(ready)

	if prev == next {
		return
	}
	s.metrics.ObserveTransition(next.String())
	s.log.Debug().
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("Session state changed")

	if s.realtime != nil {
		s.realtime.Publish(ws.WsEvent{
			Event:     ws.EventSessionStateChanged,
			Timestamp: time.Now().UTC(),
			Data: ws.SessionStateChangedData{
				State:         next.String(),
				PreviousState: prev.String(),
				Ready:         ready,
				Authenticated: s.authenticated,
				Reason:        reason,
			},
		})
	}
}

func (s *Session) publishError(code, msg string) {
	if s.realtime == nil {
		return
	}
	s.realtime.Publish(ws.WsEvent{
		Event:     ws.EventSessionError,
		Timestamp: time.Now().UTC(),
		Data:      ws.SessionErrorData{Code: code, Message: msg},
	})
}

// Deliver checks that jid exists on WhatsApp and sends body to it. Calls are
// serialized so concurrent requests never interleave on the shared client.
func (s *Session) Deliver(ctx context.Context, jid types.JID, body string) (model.SendResult, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if !s.Ready() {
		return model.SendResult{}, ErrNotReady
	}

	registered, err := s.client.IsRegistered(ctx, jid)
	if err != nil {
		return model.SendResult{}, fmt.Errorf("failed to verify number: %w", err)
	}
	if !registered {
		return model.SendResult{}, ErrNotRegistered
	}

	res, err := s.client.Send(ctx, jid, body)
	if err != nil {
		return model.SendResult{}, err
	}
	return res, nil
}
