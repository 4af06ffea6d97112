package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gowa-gateway/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types/events"
)

func TestTranslateEvent(t *testing.T) {
	tests := []struct {
		name string
		evt  interface{}
		want model.EventKind
	}{
		{"pair success", &events.PairSuccess{}, model.EventAuthenticated},
		{"connected", &events.Connected{}, model.EventReady},
		{"stored session rejected", &events.LoggedOut{OnConnect: true, Reason: events.ConnectFailureLoggedOut}, model.EventAuthFailure},
		{"unlinked from phone", &events.LoggedOut{OnConnect: false}, model.EventDisconnected},
		{"pair error", &events.PairError{Error: errors.New("bad signature")}, model.EventAuthFailure},
		{"client outdated", &events.ClientOutdated{}, model.EventAuthFailure},
		{"temporary ban", &events.TemporaryBan{}, model.EventAuthFailure},
		{"connect failure", &events.ConnectFailure{Reason: events.ConnectFailureServiceUnavailable}, model.EventDisconnected},
		{"stream replaced", &events.StreamReplaced{}, model.EventDisconnected},
		{"disconnected", &events.Disconnected{}, model.EventDisconnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translateEvent(tt.evt)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestTranslateEventIgnoresOthers(t *testing.T) {
	for _, evt := range []interface{}{&events.Message{}, &events.Receipt{}, &events.KeepAliveTimeout{}, "noise"} {
		_, ok := translateEvent(evt)
		assert.False(t, ok)
	}
}

func TestTranslateEventKeepsReason(t *testing.T) {
	got, _ := translateEvent(&events.PairError{Error: errors.New("bad signature")})
	assert.Equal(t, "bad signature", got.Reason)

	got, _ = translateEvent(&events.StreamReplaced{})
	assert.Equal(t, "stream replaced", got.Reason)
}

// runForwardQR feeds items through forwardQR and returns what reached the handler.
func runForwardQR(ctx context.Context, items ...whatsmeow.QRChannelItem) []model.LifecycleEvent {
	w := &WhatsmeowClient{log: zerolog.Nop()}
	var got []model.LifecycleEvent
	w.AddEventHandler(func(evt model.LifecycleEvent) { got = append(got, evt) })

	qrChan := make(chan whatsmeow.QRChannelItem, len(items))
	for _, item := range items {
		qrChan <- item
	}
	close(qrChan)
	w.forwardQR(ctx, qrChan)
	return got
}

func TestForwardQR(t *testing.T) {
	tests := []struct {
		name string
		item whatsmeow.QRChannelItem
		want []model.EventKind
	}{
		{"code", whatsmeow.QRChannelItem{Event: "code", Code: "2@abc", Timeout: time.Minute}, []model.EventKind{model.EventQR}},
		{"success", whatsmeow.QRChannelItem{Event: "success"}, nil},
		{"timeout", whatsmeow.QRChannelItem{Event: "timeout"}, []model.EventKind{model.EventDisconnected}},
		{"client outdated", whatsmeow.QRChannelItem{Event: "err-client-outdated"}, []model.EventKind{model.EventAuthFailure}},
		{"unexpected state", whatsmeow.QRChannelItem{Event: "err-unexpected-state"}, []model.EventKind{model.EventAuthFailure}},
		{"error", whatsmeow.QRChannelItem{Event: "error", Error: errors.New("pair-device failed")}, []model.EventKind{model.EventAuthFailure}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runForwardQR(context.Background(), tt.item)

			var kinds []model.EventKind
			for _, evt := range got {
				kinds = append(kinds, evt.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestForwardQRKeepsCodeAndReason(t *testing.T) {
	got := runForwardQR(context.Background(),
		whatsmeow.QRChannelItem{Event: "code", Code: "2@abc", Timeout: time.Minute},
		whatsmeow.QRChannelItem{Event: "error", Error: errors.New("pair-device failed")},
	)

	require.Len(t, got, 2)
	assert.Equal(t, "2@abc", got[0].QRCode)
	assert.Equal(t, time.Minute, got[0].QRTimeout)
	assert.Equal(t, "pair-device failed", got[1].Reason)
}

func TestForwardQRTimeoutAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := runForwardQR(ctx, whatsmeow.QRChannelItem{Event: "timeout"})

	assert.Empty(t, got)
}
