package chat

import (
	"html"
	"sort"
	"time"
)

// NearBottomThreshold is how close (in pixels) the viewport must be to the
// bottom edge for new arrivals to auto-scroll. A user scrolled further up is
// assumed to be reading history and is left where they are.
const NearBottomThreshold = 140

// Viewport abstracts the scrollable container the log is rendered into. A
// nil viewport means headless operation (merges only, no scroll handling).
type Viewport interface {
	// Metrics returns total content height, current scroll offset and the
	// visible height, all in pixels.
	Metrics() (scrollHeight, scrollTop, clientHeight int)
	// ScrollToBottom pins the viewport to the newest content.
	ScrollToBottom()
}

// Row is one rendered message. Author and Text are HTML-escaped; untrusted
// content must never reach the display layer as markup.
type Row struct {
	ID        int64
	Author    string
	Text      string
	Self      bool
	CreatedAt time.Time
}

// LogView is the ordered, append-only sequence of rendered messages. It is
// mutated only through ReplaceAll (snapshot) and AppendMany (incremental
// merge); both are idempotent with respect to duplicate ids.
type LogView struct {
	self string
	vp   Viewport
	rows []Row
	seen map[int64]struct{}
}

// NewLogView builds an empty view. self is the current session's identity,
// used to visually distinguish the user's own messages.
func NewLogView(self string, vp Viewport) *LogView {
	return &LogView{self: self, vp: vp, seen: make(map[int64]struct{})}
}

// ReplaceAll clears the view and renders msgs in order. Used only for the
// initial snapshot. The near-bottom decision is taken before clearing so a
// user already caught up stays pinned to the newest content.
func (v *LogView) ReplaceAll(msgs []Message) {
	keep := v.nearBottom()
	v.rows = v.rows[:0]
	v.seen = make(map[int64]struct{}, len(msgs))
	v.appendRows(msgs)
	if keep && v.vp != nil {
		v.vp.ScrollToBottom()
	}
}

// AppendMany merges msgs in supplied order, skipping ids already rendered.
// One scroll decision covers the whole batch to avoid jitter. It returns how
// many messages were actually merged.
func (v *LogView) AppendMany(msgs []Message) int {
	keep := v.nearBottom()
	n := v.appendRows(msgs)
	if n > 0 && keep && v.vp != nil {
		v.vp.ScrollToBottom()
	}
	return n
}

// Rows returns a copy of the rendered sequence, ascending by id.
func (v *LogView) Rows() []Row {
	out := make([]Row, len(v.rows))
	copy(out, v.rows)
	return out
}

// Len returns the number of rendered messages.
func (v *LogView) Len() int { return len(v.rows) }

func (v *LogView) appendRows(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if !m.Valid() {
			continue
		}
		if _, dup := v.seen[m.ID]; dup {
			continue
		}
		v.seen[m.ID] = struct{}{}
		v.rows = append(v.rows, Row{
			ID:        m.ID,
			Author:    html.EscapeString(m.Username),
			Text:      html.EscapeString(m.Text),
			Self:      m.Username == v.self,
			CreatedAt: m.CreatedAt,
		})
		n++
	}
	if n > 0 && !sort.SliceIsSorted(v.rows, func(i, j int) bool { return v.rows[i].ID < v.rows[j].ID }) {
		sort.Slice(v.rows, func(i, j int) bool { return v.rows[i].ID < v.rows[j].ID })
	}
	return n
}

func (v *LogView) nearBottom() bool {
	if v.vp == nil {
		return false
	}
	h, top, client := v.vp.Metrics()
	return h-top-client < NearBottomThreshold
}
