// Package history keeps the bounded log of conversation turns.
//
// A Window holds at most Cap records. Appending to a full window evicts the
// oldest record; nothing else ever removes one. Windows are values: copying a
// Window and appending to the copy never changes the original, so a state
// snapshot taken before a node runs stays intact whatever the node does.
package history

import (
	"encoding/json"
	"fmt"
)

// DefaultCapacity is the window size used when none is configured.
const DefaultCapacity = 10

// Role identifies who authored a record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Origin tells whether a record belongs to the current visit or was carried
// over from an earlier one.
type Origin string

const (
	OriginNew      Origin = "new"
	OriginReplayed Origin = "replayed"
)

// Record is one turn entry. Records are never modified once appended.
type Record struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Origin  Origin `json:"origin"`
}

// User returns a new user record.
func User(content string) Record {
	return Record{Role: RoleUser, Content: content, Origin: OriginNew}
}

// Assistant returns a new assistant record.
func Assistant(content string) Record {
	return Record{Role: RoleAssistant, Content: content, Origin: OriginNew}
}

// Window is a bounded, insertion-ordered log of records.
// The zero value is an empty window of DefaultCapacity.
type Window struct {
	capacity int
	records  []Record
}

// New returns an empty window holding at most capacity records.
// A capacity below 1 is treated as 1.
func New(capacity int) Window {
	return Window{capacity: max(capacity, 1)}
}

// Cap returns the maximum number of records the window keeps.
func (w Window) Cap() int {
	if w.capacity < 1 {
		return DefaultCapacity
	}
	return w.capacity
}

// Len returns the number of records held.
func (w Window) Len() int {
	return len(w.records)
}

// Append adds rec, evicting the oldest record when the window is full.
// A record without an origin is stored as OriginNew.
//
// The backing array is never shared with earlier copies of the window, so
// the cost is bounded by Cap regardless of how many records were ever
// appended.
func (w *Window) Append(rec Record) {
	if rec.Origin == "" {
		rec.Origin = OriginNew
	}
	c := w.Cap()
	start := max(len(w.records)+1-c, 0)

	next := make([]Record, 0, min(len(w.records)+1, c))
	next = append(next, w.records[start:]...)
	next = append(next, rec)

	w.capacity = c
	w.records = next
}

// Snapshot returns an independent copy of the records, oldest first.
func (w Window) Snapshot() []Record {
	out := make([]Record, len(w.records))
	copy(out, w.records)
	return out
}

// Last returns the newest record.
func (w Window) Last() (Record, bool) {
	if len(w.records) == 0 {
		return Record{}, false
	}
	return w.records[len(w.records)-1], true
}

// MarkReplayed returns a copy in which every record is marked as replayed.
// Used when a user re-opens a room: everything said so far belongs to an
// earlier visit.
func (w Window) MarkReplayed() Window {
	out := Window{capacity: w.Cap(), records: w.Snapshot()}
	for i := range out.records {
		out.records[i].Origin = OriginReplayed
	}
	return out
}

// UserQuestions returns the contents of user records with the given origin,
// oldest first. An empty origin matches every record.
func (w Window) UserQuestions(origin Origin) []string {
	var out []string
	for _, rec := range w.records {
		if rec.Role != RoleUser {
			continue
		}
		if origin != "" && rec.Origin != origin {
			continue
		}
		out = append(out, rec.Content)
	}
	return out
}

type windowJSON struct {
	Capacity int      `json:"capacity"`
	Records  []Record `json:"records"`
}

// MarshalJSON encodes the capacity and the records.
func (w Window) MarshalJSON() ([]byte, error) {
	records := w.records
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(windowJSON{Capacity: w.Cap(), Records: records})
}

// UnmarshalJSON decodes a window. When more records than the capacity are
// present only the newest are kept.
func (w *Window) UnmarshalJSON(data []byte) error {
	var raw windowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode history window: %w", err)
	}
	out := New(raw.Capacity)
	if raw.Capacity < 1 {
		out = New(DefaultCapacity)
	}
	for _, rec := range raw.Records {
		out.Append(rec)
	}
	*w = out
	return nil
}
