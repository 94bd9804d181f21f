package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

// ErrTransportClosed is returned by AwaitNext after Close.
var ErrTransportClosed = errors.New("chat: push transport closed")

// PushTransport synchronizes through one persistent websocket. The server
// emits chat_message events as they happen; reconnection after a drop is
// automatic with exponential backoff and is invisible to the caller apart
// from the reported connectivity transitions. The initial snapshot and sends
// still travel over the plain HTTP API.
type PushTransport struct {
	api    *api
	wsURL  string
	dialer *websocket.Dialer

	incoming chan Message
	done     chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	stateFn func(ConnState)
	errFn   func(error)
}

// PushOption customizes a PushTransport.
type PushOption func(*PushTransport)

// WithPushHTTPClient replaces the http.Client used for snapshot and send.
func WithPushHTTPClient(c *http.Client) PushOption {
	return func(t *PushTransport) { t.api.client = c }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) PushOption {
	return func(t *PushTransport) { t.dialer = d }
}

// NewPushTransport returns a push-channel transport for the chat API rooted
// at baseURL. The websocket endpoint is derived from baseURL (http -> ws).
func NewPushTransport(baseURL, username string, opts ...PushOption) (*PushTransport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/chat/ws"

	t := &PushTransport{
		api:      &api{baseURL: baseURL, username: username, client: &http.Client{}},
		wsURL:    u.String(),
		dialer:   websocket.DefaultDialer,
		incoming: make(chan Message, 256),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// SetStateHandler registers the connectivity callback. Implements
// StateNotifier.
func (t *PushTransport) SetStateHandler(fn func(ConnState)) {
	t.mu.Lock()
	t.stateFn = fn
	t.mu.Unlock()
}

// SetErrorHandler registers the callback for chat_error events. Implements
// ErrorNotifier.
func (t *PushTransport) SetErrorHandler(fn func(error)) {
	t.mu.Lock()
	t.errFn = fn
	t.mu.Unlock()
}

func (t *PushTransport) Snapshot(ctx context.Context, limit int) ([]Message, error) {
	return t.api.snapshot(ctx, limit)
}

// AwaitNext blocks until at least one message newer than since arrives over
// the channel, then returns it together with whatever else is already
// buffered, preserving delivery order.
func (t *PushTransport) AwaitNext(ctx context.Context, since int64) ([]Message, error) {
	t.startOnce.Do(func() { go t.manage() })
	for {
		var first Message
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.done:
			return nil, ErrTransportClosed
		case first = <-t.incoming:
		}
		batch := append([]Message{first}, t.drain()...)
		if batch = filterAfter(batch, since); len(batch) > 0 {
			return batch, nil
		}
		// everything buffered was stale; keep waiting
	}
}

func (t *PushTransport) Send(ctx context.Context, text string) (Message, error) {
	return t.api.send(ctx, text)
}

// Close tears down the channel permanently. AwaitNext calls return
// ErrTransportClosed afterwards.
func (t *PushTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

func (t *PushTransport) drain() []Message {
	var out []Message
	for {
		select {
		case m := <-t.incoming:
			out = append(out, m)
		default:
			return out
		}
	}
}

// manage owns the connection lifecycle: dial, pump events, reconnect with
// exponential backoff until Close.
func (t *PushTransport) manage() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		select {
		case <-t.done:
			return
		default:
		}

		t.notifyState(StateConnecting)
		header := http.Header{}
		if t.api.username != "" {
			header.Set("X-Chat-User", t.api.username)
		}
		conn, resp, err := t.dialer.Dial(t.wsURL, header)
		if resp != nil && resp.Body != nil {
			closeBody(resp.Body)
		}
		if err != nil {
			t.notifyState(StateDisconnected)
			if !t.sleep(bo.NextBackOff()) {
				return
			}
			continue
		}

		bo.Reset()
		t.notifyState(StateConnected)

		connDone := make(chan struct{})
		go func() {
			select {
			case <-t.done:
				_ = conn.Close()
			case <-connDone:
			}
		}()
		t.pump(conn)
		close(connDone)
		_ = conn.Close()

		select {
		case <-t.done:
			return
		default:
		}
		t.notifyState(StateDisconnected)
		if !t.sleep(bo.NextBackOff()) {
			return
		}
	}
}

// pump reads event envelopes until the connection fails. Malformed frames
// are dropped, not fatal.
func (t *PushTransport) pump(conn *websocket.Conn) {
	for {
		var ev struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Event {
		case "chat_message":
			var m Message
			if err := json.Unmarshal(ev.Data, &m); err != nil || !m.Valid() {
				continue
			}
			select {
			case t.incoming <- m:
			case <-t.done:
				return
			}
		case "chat_error":
			var payload struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(ev.Data, &payload); err == nil && payload.Error != "" {
				t.notifyError(&ServerError{Op: "push", Status: 0, Message: payload.Error})
			}
		}
	}
}

func (t *PushTransport) sleep(d time.Duration) bool {
	select {
	case <-t.done:
		return false
	case <-time.After(d):
		return true
	}
}

func (t *PushTransport) notifyState(s ConnState) {
	t.mu.Lock()
	fn := t.stateFn
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (t *PushTransport) notifyError(err error) {
	t.mu.Lock()
	fn := t.errFn
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
