// Package changes classifies the files touched between two points of
// history, or in the working tree, by kind of change.
package changes

import (
	"encoding/json"
	"slices"
	"strings"
)

// Status is a git change code.
type Status string

const (
	Added       Status = "A"
	Modified    Status = "M"
	TypeChanged Status = "T"
	Deleted     Status = "D"
	Renamed     Status = "R"
	Copied      Status = "C"
)

// KnownStatuses lists the codes a sandbox can be synchronized with, in
// reporting order.
var KnownStatuses = []Status{Added, Modified, TypeChanged, Deleted, Renamed, Copied}

// Known reports whether s is one of KnownStatuses.
func (s Status) Known() bool {
	return slices.Contains(KnownStatuses, s)
}

// Paired reports whether entries of s carry an old and a new path.
func (s Status) Paired() bool {
	return s == Renamed || s == Copied
}

// Entry is one touched file. From is only set for renames and copies.
type Entry struct {
	Path string `json:"path"`
	From string `json:"from,omitempty"`
}

func (e Entry) String() string {
	if e.From != "" {
		return e.From + " -> " + e.Path
	}
	return e.Path
}

// ChangeSet buckets entries by status. Buckets are sets.
type ChangeSet struct {
	buckets map[Status]map[Entry]struct{}
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{buckets: make(map[Status]map[Entry]struct{})}
}

// Add records e under status.
func (c *ChangeSet) Add(status Status, e Entry) {
	b, ok := c.buckets[status]
	if !ok {
		b = make(map[Entry]struct{})
		c.buckets[status] = b
	}
	b[e] = struct{}{}
}

// Entries returns the entries under status, sorted by path.
func (c *ChangeSet) Entries(status Status) []Entry {
	b := c.buckets[status]
	entries := make([]Entry, 0, len(b))
	for e := range b {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if n := strings.Compare(a.Path, b.Path); n != 0 {
			return n
		}
		return strings.Compare(a.From, b.From)
	})
	return entries
}

// Paths returns the (new) paths under status, sorted.
func (c *ChangeSet) Paths(status Status) []string {
	entries := c.Entries(status)
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	return paths
}

// Statuses returns the non-empty buckets, known codes first in reporting
// order, then unknown codes sorted.
func (c *ChangeSet) Statuses() []Status {
	var statuses []Status
	for _, s := range KnownStatuses {
		if len(c.buckets[s]) > 0 {
			statuses = append(statuses, s)
		}
	}
	return append(statuses, c.Unknown()...)
}

// Unknown returns the non-empty buckets outside KnownStatuses.
func (c *ChangeSet) Unknown() []Status {
	var unknown []Status
	for s, b := range c.buckets {
		if !s.Known() && len(b) > 0 {
			unknown = append(unknown, s)
		}
	}
	slices.Sort(unknown)
	return unknown
}

// Len counts entries over all buckets.
func (c *ChangeSet) Len() int {
	n := 0
	for _, b := range c.buckets {
		n += len(b)
	}
	return n
}

// IsEmpty reports whether nothing was touched.
func (c *ChangeSet) IsEmpty() bool {
	return c.Len() == 0
}

// ToCopy lists the paths whose content must be materialized: A, M and T
// paths plus the new path of renames and copies.
func (c *ChangeSet) ToCopy() []string {
	var paths []string
	for _, s := range KnownStatuses {
		if s == Deleted {
			continue
		}
		paths = append(paths, c.Paths(s)...)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// ToIgnore lists the paths that disappear: deletions plus the old path
// of renames.
func (c *ChangeSet) ToIgnore() []string {
	paths := c.Paths(Deleted)
	for _, e := range c.Entries(Renamed) {
		paths = append(paths, e.From)
	}
	slices.Sort(paths)
	return slices.Compact(paths)
}

// Merge returns the per-status union of sets.
func Merge(sets ...*ChangeSet) *ChangeSet {
	merged := NewChangeSet()
	for _, set := range sets {
		if set == nil {
			continue
		}
		for s, b := range set.buckets {
			for e := range b {
				merged.Add(s, e)
			}
		}
	}
	return merged
}

// MarshalJSON renders the set as {"A": [...], "R": [...]}.
func (c *ChangeSet) MarshalJSON() ([]byte, error) {
	out := make(map[Status][]Entry, len(c.buckets))
	for _, s := range c.Statuses() {
		out[s] = c.Entries(s)
	}
	return json.Marshal(out)
}
