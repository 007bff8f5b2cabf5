package models

import (
	"sort"
	"time"
)

// Cookies is an immutable snapshot of browser cookies keyed by name.
// Construct it with NewCookies; the underlying map is never handed out.
type Cookies struct {
	values map[string]string
}

// NewCookies copies m into a new snapshot
func NewCookies(m map[string]string) Cookies {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return Cookies{values: values}
}

// Get returns the value of the named cookie
func (c Cookies) Get(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Len returns the number of cookies in the snapshot
func (c Cookies) Len() int {
	return len(c.values)
}

// Names returns the cookie names in sorted order
func (c Cookies) Names() []string {
	names := make([]string, 0, len(c.values))
	for k := range c.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the snapshot
func (c Cookies) Map() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// WorkItem is one discovered link plus the metadata needed to fetch it
type WorkItem struct {
	Key     string  `json:"key"`
	Link    string  `json:"link"`
	Query   string  `json:"query,omitempty"`
	Cookies Cookies `json:"-"`
}

// Place is the structured record extracted from a place page
type Place struct {
	Name       string   `json:"name"`
	Address    string   `json:"address,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	Owner      string   `json:"owner,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// FailureKind classifies why a work item never produced a record
type FailureKind string

const (
	FailureTransient  FailureKind = "transient"
	FailurePermanent  FailureKind = "permanent"
	FailureExtraction FailureKind = "extraction"
	FailureCanceled   FailureKind = "canceled"
)

// Failure marks a work item that exhausted its attempts
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// ResultEntry is the terminal outcome of one work item.
// Exactly one of Place and Failure is set.
type ResultEntry struct {
	Key         string        `json:"key"`
	Link        string        `json:"link"`
	Query       string        `json:"query,omitempty"`
	Place       *Place        `json:"place,omitempty"`
	Failure     *Failure      `json:"failure,omitempty"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration_ns"`
	CompletedAt time.Time     `json:"completed_at"`
}

// OK reports whether the entry holds a record
func (e ResultEntry) OK() bool {
	return e.Place != nil && e.Failure == nil
}

// Results maps work item keys to their terminal entries
type Results map[string]ResultEntry

// Keys returns all keys in sorted order
func (r Results) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Failed returns the sorted keys whose entries carry a failure marker
func (r Results) Failed() []string {
	var keys []string
	for _, k := range r.Keys() {
		if !r[k].OK() {
			keys = append(keys, k)
		}
	}
	return keys
}

// Succeeded returns the sorted keys whose entries hold a record
func (r Results) Succeeded() []string {
	var keys []string
	for _, k := range r.Keys() {
		if r[k].OK() {
			keys = append(keys, k)
		}
	}
	return keys
}

// Entries returns all entries ordered by key
func (r Results) Entries() []ResultEntry {
	entries := make([]ResultEntry, 0, len(r))
	for _, k := range r.Keys() {
		entries = append(entries, r[k])
	}
	return entries
}

// Merge copies entries from other into r. An existing entry is kept
// unless it is a failure and the incoming entry succeeded, so a key is
// reported failed only if it failed everywhere.
func (r Results) Merge(other Results) {
	for k, v := range other {
		if existing, exists := r[k]; !exists || (!existing.OK() && v.OK()) {
			r[k] = v
		}
	}
}

// Stats is a point-in-time snapshot of a collector
type Stats struct {
	Submitted int  `json:"submitted"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Closed    bool `json:"closed"`
}

// Pending returns the number of submitted items without a result
func (s Stats) Pending() int {
	return s.Submitted - s.Completed
}
