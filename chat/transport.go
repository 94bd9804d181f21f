package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// ConnState describes the engine's view of connectivity.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateSuspended
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Transport delivers ordered batches of new messages from the server. Both
// strategies implement it; the Controller is unaware which one is active.
type Transport interface {
	// Snapshot returns the most recent limit messages, oldest first. Used
	// once at startup; callers do not retry it automatically.
	Snapshot(ctx context.Context, limit int) ([]Message, error)
	// AwaitNext blocks until messages newer than since are available (or the
	// strategy's own bounded wait elapses) and returns them oldest first,
	// possibly empty. Entries with id <= since are filtered defensively.
	AwaitNext(ctx context.Context, since int64) ([]Message, error)
	// Send submits a composed message and returns the created entry.
	Send(ctx context.Context, text string) (Message, error)
}

// StateNotifier is implemented by transports that own a stateful connection
// and report connectivity transitions (the push channel). The handler must be
// safe to call from the transport's own goroutines.
type StateNotifier interface {
	SetStateHandler(func(ConnState))
}

// ErrorNotifier is implemented by transports that surface asynchronous
// channel-level errors carrying a server-supplied message.
type ErrorNotifier interface {
	SetErrorHandler(func(error))
}

// EagerPoller marks transports whose steady-state delivery is request driven.
// After a successful send the Controller issues one extra AwaitNext so the
// sender sees their own message without waiting for the next scheduled poll.
type EagerPoller interface {
	EagerPoll() bool
}

// api is the HTTP side of the wire contract, shared by both transports. The
// push strategy still uses it for the initial snapshot and for sends.
type api struct {
	baseURL  string
	username string
	client   *http.Client
}

func (a *api) snapshot(ctx context.Context, limit int) ([]Message, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var out []Message
	if err := a.getJSON(ctx, "snapshot", "/chat/api/messages?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return filterAfter(out, 0), nil
}

func (a *api) poll(ctx context.Context, since int64) ([]Message, error) {
	q := url.Values{"since_id": {strconv.FormatInt(since, 10)}}
	var out []Message
	if err := a.getJSON(ctx, "poll", "/chat/api/poll?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return filterAfter(out, since), nil
}

func (a *api) send(ctx context.Context, text string) (Message, error) {
	body, _ := json.Marshal(map[string]string{"text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/api/messages", bytes.NewReader(body))
	if err != nil {
		return Message{}, &NetworkError{Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if a.username != "" {
		req.Header.Set("X-Chat-User", a.username)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Message{}, &NetworkError{Op: "send", Err: err}
	}
	defer closeBody(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Message{}, serverError("send", resp)
	}
	var m Message
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return Message{}, &ProtocolError{Op: "send", Reason: fmt.Sprintf("decode response: %v", err)}
	}
	return m, nil
}

func (a *api) getJSON(ctx context.Context, op, path string, out *[]Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if a.username != "" {
		req.Header.Set("X-Chat-User", a.username)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer closeBody(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return serverError(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProtocolError{Op: op, Reason: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// serverError extracts the structured {"error": "..."} body when present.
func serverError(op string, resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload)
	return &ServerError{Op: op, Status: resp.StatusCode, Message: payload.Error}
}

func closeBody(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 4096))
	_ = rc.Close()
}
