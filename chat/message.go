package chat

import (
	"time"
)

// Message is one entry of the shared log. IDs are server-assigned, strictly
// increasing and never reused, so id order equals creation order.
type Message struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether a decoded message is usable. Entries failing this
// check are protocol violations and are dropped at the transport boundary
// rather than propagated into the view.
func (m Message) Valid() bool {
	return m.ID > 0 && m.Username != ""
}

// filterAfter drops entries with id <= since and invalid entries, preserving
// order. It returns the input slice untouched when nothing needs dropping.
func filterAfter(msgs []Message, since int64) []Message {
	clean := true
	for _, m := range msgs {
		if !m.Valid() || m.ID <= since {
			clean = false
			break
		}
	}
	if clean {
		return msgs
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Valid() && m.ID > since {
			out = append(out, m)
		}
	}
	return out
}
