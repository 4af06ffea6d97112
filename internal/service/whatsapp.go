package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"gowa-gateway/internal/helper"
	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// WhatsmeowClient implements Client on top of a whatsmeow connection whose
// credentials live in a sqlstore container.
type WhatsmeowClient struct {
	container *sqlstore.Container
	waLog     waLog.Logger
	log       zerolog.Logger

	// mu serializes Start/Stop; active is read lock-free by request paths
	mu       sync.Mutex
	client   *whatsmeow.Client
	active   atomic.Pointer[whatsmeow.Client]
	qrCancel context.CancelFunc

	handlersLock sync.RWMutex
	handlers     []func(model.LifecycleEvent)
}

func NewWhatsmeowClient(container *sqlstore.Container, clientLog waLog.Logger, log zerolog.Logger) *WhatsmeowClient {
	return &WhatsmeowClient{
		container: container,
		waLog:     clientLog,
		log:       log,
	}
}

func (w *WhatsmeowClient) AddEventHandler(handler func(model.LifecycleEvent)) {
	w.handlersLock.Lock()
	w.handlers = append(w.handlers, handler)
	w.handlersLock.Unlock()
}

func (w *WhatsmeowClient) emit(evt model.LifecycleEvent) {
	w.handlersLock.RLock()
	handlers := w.handlers
	w.handlersLock.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// Start (re)connects. A device without credentials goes through the QR
// pairing flow; QR codes are forwarded as EventQR.
func (w *WhatsmeowClient) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopQRLocked()
	if w.client != nil {
		w.client.Disconnect()
		// Device yang sudah logout tidak bisa dipakai lagi, ambil device baru dari store
		if w.client.Store.ID == nil {
			w.client = nil
		}
	}

	if w.client == nil {
		device, err := w.container.GetFirstDevice(ctx)
		if err != nil {
			return fmt.Errorf("failed to get device: %w", err)
		}
		client := whatsmeow.NewClient(device, w.waLog)
		// reconnect diatur oleh Session, bukan oleh whatsmeow
		client.EnableAutoReconnect = false
		client.AddEventHandler(w.eventHandler(client))
		w.client = client
		w.active.Store(client)
	}

	if w.client.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(ctx)
		qrChan, err := w.client.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to get QR channel: %w", err)
		}
		w.qrCancel = cancel
		go w.forwardQR(qrCtx, qrChan)
	}

	if err := w.client.Connect(); err != nil {
		w.stopQRLocked()
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

func (w *WhatsmeowClient) stopQRLocked() {
	if w.qrCancel != nil {
		w.qrCancel()
		w.qrCancel = nil
	}
}

func (w *WhatsmeowClient) forwardQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch {
		case evt.Event == "code":
			w.emit(model.LifecycleEvent{
				Kind:      model.EventQR,
				QRCode:    evt.Code,
				QRTimeout: evt.Timeout,
			})

		case evt.Event == "success":
			w.log.Info().Msg("QR scanned, pairing successful")

		case evt.Event == "timeout":
			// whatsmeow memutus koneksi sendiri saat QR timeout tanpa event Disconnected
			if ctx.Err() == nil {
				w.emit(model.LifecycleEvent{Kind: model.EventDisconnected, Reason: "qr code timed out"})
			}

		case evt.Event == "error":
			reason := "qr pairing failed"
			if evt.Error != nil {
				reason = evt.Error.Error()
			}
			w.emit(model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: reason})

		case strings.HasPrefix(evt.Event, "err-"):
			w.emit(model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: evt.Event})
		}
	}
}

// Event handler untuk handle connection events dari whatsmeow
func (w *WhatsmeowClient) eventHandler(client *whatsmeow.Client) func(evt interface{}) {
	return func(rawEvt interface{}) {
		evt, ok := translateEvent(rawEvt)
		if !ok {
			return
		}
		if evt.Kind == model.EventReady && client.Store.ID != nil {
			w.log.Info().
				Str("phone", helper.ExtractPhoneFromJID(client.Store.ID.String())).
				Msg("Connected")
		}
		w.emit(evt)
	}
}

// translateEvent maps whatsmeow events onto the five lifecycle events.
func translateEvent(rawEvt interface{}) (model.LifecycleEvent, bool) {
	switch evt := rawEvt.(type) {
	case *events.PairSuccess:
		return model.LifecycleEvent{Kind: model.EventAuthenticated}, true

	case *events.Connected:
		return model.LifecycleEvent{Kind: model.EventReady}, true

	case *events.LoggedOut:
		// OnConnect: kredensial tersimpan ditolak saat connect -> auth failure.
		// Selain itu device di-unlink dari HP saat berjalan -> disconnected, pairing ulang.
		if evt.OnConnect {
			return model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: evt.Reason.String()}, true
		}
		return model.LifecycleEvent{Kind: model.EventDisconnected, Reason: "logged out: " + evt.Reason.String()}, true

	case *events.PairError:
		reason := "pairing failed"
		if evt.Error != nil {
			reason = evt.Error.Error()
		}
		return model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: reason}, true

	case *events.ClientOutdated:
		return model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: "client outdated"}, true

	case *events.TemporaryBan:
		return model.LifecycleEvent{Kind: model.EventAuthFailure, Reason: evt.String()}, true

	case *events.ConnectFailure:
		return model.LifecycleEvent{Kind: model.EventDisconnected, Reason: "connect failure: " + evt.Reason.String()}, true

	case *events.StreamReplaced:
		return model.LifecycleEvent{Kind: model.EventDisconnected, Reason: "stream replaced"}, true

	case *events.Disconnected:
		return model.LifecycleEvent{Kind: model.EventDisconnected, Reason: "connection lost"}, true
	}
	return model.LifecycleEvent{}, false
}

func (w *WhatsmeowClient) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopQRLocked()
	if w.client != nil {
		w.client.Disconnect()
	}
}

func (w *WhatsmeowClient) IsAuthenticated() bool {
	client := w.active.Load()
	return client != nil && client.Store.ID != nil
}

var errNoClient = errors.New("client not initialized")

func (w *WhatsmeowClient) current() (*whatsmeow.Client, error) {
	client := w.active.Load()
	if client == nil {
		return nil, errNoClient
	}
	return client, nil
}

func (w *WhatsmeowClient) IsRegistered(ctx context.Context, jid types.JID) (bool, error) {
	client, err := w.current()
	if err != nil {
		return false, err
	}
	resp, err := client.IsOnWhatsApp(ctx, []string{jid.User})
	if err != nil {
		return false, err
	}
	return len(resp) > 0 && resp[0].IsIn, nil
}

func (w *WhatsmeowClient) Send(ctx context.Context, jid types.JID, body string) (model.SendResult, error) {
	client, err := w.current()
	if err != nil {
		return model.SendResult{}, err
	}
	msg := &waE2E.Message{
		Conversation: proto.String(body),
	}
	resp, err := client.SendMessage(ctx, jid, msg)
	if err != nil {
		return model.SendResult{}, err
	}
	return model.SendResult{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}
