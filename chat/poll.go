package chat

import (
	"context"
	"net/http"
	"time"
)

// PollTransport synchronizes through repeated bounded-wait HTTP polls. The
// server holds each poll open until a new message exists or its own timeout
// elapses, then answers with an empty batch; the caller immediately issues
// the next request. By default no client-side request timeout is applied (the
// server enforces the bounded wait); WithRequestTimeout hardens that.
type PollTransport struct {
	api            *api
	requestTimeout time.Duration
}

// PollOption customizes a PollTransport.
type PollOption func(*PollTransport)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) PollOption {
	return func(t *PollTransport) { t.api.client = c }
}

// WithRequestTimeout bounds each individual poll round-trip. Zero (the
// default) trusts the server's timeout discipline entirely.
func WithRequestTimeout(d time.Duration) PollOption {
	return func(t *PollTransport) { t.requestTimeout = d }
}

// NewPollTransport returns a long-poll transport for the chat API rooted at
// baseURL. username identifies the session to the server on sends.
func NewPollTransport(baseURL, username string, opts ...PollOption) *PollTransport {
	t := &PollTransport{
		api: &api{baseURL: baseURL, username: username, client: &http.Client{}},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *PollTransport) Snapshot(ctx context.Context, limit int) ([]Message, error) {
	return t.api.snapshot(ctx, limit)
}

func (t *PollTransport) AwaitNext(ctx context.Context, since int64) ([]Message, error) {
	if t.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
	}
	return t.api.poll(ctx, since)
}

func (t *PollTransport) Send(ctx context.Context, text string) (Message, error) {
	return t.api.send(ctx, text)
}

// EagerPoll reports that an extra on-demand poll after a send is meaningful
// for this strategy.
func (t *PollTransport) EagerPoll() bool { return true }
