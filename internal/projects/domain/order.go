package domain

import (
	"sort"
	"time"
)

// Cursor is a position in a project's message log. Messages are totally
// ordered by (CreatedAt, ID); the ID breaks ties within one timestamp tick.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// Before reports whether c sorts strictly before o.
func (c Cursor) Before(o Cursor) bool {
	if !c.CreatedAt.Equal(o.CreatedAt) {
		return c.CreatedAt.Before(o.CreatedAt)
	}
	return c.ID < o.ID
}

// MessageLess is the total order used by every rendered log.
func MessageLess(a, b Message) bool {
	return a.Cursor().Before(b.Cursor())
}

// SortMessages orders msgs in place by (CreatedAt, ID).
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return MessageLess(msgs[i], msgs[j]) })
}

// MessagesAfter returns the messages strictly after the cursor, in order.
// A nil cursor returns everything.
func MessagesAfter(msgs []Message, after *Cursor) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if after == nil || after.Before(m.Cursor()) {
			out = append(out, m)
		}
	}
	SortMessages(out)
	return out
}

// CountUnread counts messages the viewer's side has not read yet.
func CountUnread(msgs []Message, viewer Role) int {
	side := viewer.ChannelSide()
	n := 0
	for _, m := range msgs {
		if m.SenderRole != side && !m.IsRead {
			n++
		}
	}
	return n
}

// SortFilesNewestFirst orders files by CreatedAt descending, ID descending on ties.
func SortFilesNewestFirst(files []ProjectFile) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
