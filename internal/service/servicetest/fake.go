// Package servicetest provides an in-memory automation client for tests.
package servicetest

import (
	"context"
	"sync"
	"time"

	"gowa-gateway/internal/model"

	"go.mau.fi/whatsmeow/types"
)

// FakeClient records every call and lets tests fire lifecycle events by hand.
type FakeClient struct {
	mu sync.Mutex

	handlers []func(model.LifecycleEvent)

	// StartErr is returned by Start while non-nil.
	StartErr      error
	Authenticated bool
	// Registered lists the numbers IsRegistered reports as present.
	Registered  map[string]bool
	RegisterErr error
	SendErr     error
	// CallDelay keeps IsRegistered and Send in flight for a while so
	// overlapping calls can be observed.
	CallDelay time.Duration
	// BeforeStart runs at the top of Start, outside the fake's lock.
	BeforeStart func()

	inFlight     int
	maxInFlight  int
	starts       int
	stops        int
	registerHits []string
	sent         []Sent
}

type Sent struct {
	To   types.JID
	Body string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{Registered: make(map[string]bool)}
}

func (f *FakeClient) AddEventHandler(h func(model.LifecycleEvent)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

// Emit delivers evt to every registered handler synchronously.
func (f *FakeClient) Emit(evt model.LifecycleEvent) {
	f.mu.Lock()
	handlers := append([]func(model.LifecycleEvent){}, f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (f *FakeClient) Start(ctx context.Context) error {
	f.mu.Lock()
	hook := f.BeforeStart
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.StartErr
}

func (f *FakeClient) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *FakeClient) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Authenticated
}

func (f *FakeClient) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.CallDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
}

func (f *FakeClient) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *FakeClient) IsRegistered(ctx context.Context, jid types.JID) (bool, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerHits = append(f.registerHits, jid.User)
	if f.RegisterErr != nil {
		return false, f.RegisterErr
	}
	return f.Registered[jid.User], nil
}

func (f *FakeClient) Send(ctx context.Context, jid types.JID, body string) (model.SendResult, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return model.SendResult{}, f.SendErr
	}
	f.sent = append(f.sent, Sent{To: jid, Body: body})
	return model.SendResult{
		MessageID: "3EB0FAKE" + jid.User,
		Timestamp: time.Unix(1700000000, 0),
	}, nil
}

func (f *FakeClient) SetStartErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartErr = err
}

func (f *FakeClient) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeClient) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Calls is the number of IsRegistered and Send calls made so far.
func (f *FakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registerHits) + len(f.sent)
}

func (f *FakeClient) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// MaxInFlight is the highest number of IsRegistered/Send calls seen running at once.
func (f *FakeClient) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}
