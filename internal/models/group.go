package models

import (
	"strings"
	"time"
)

// KeyKind tags which matching rule produced a Key.
type KeyKind string

const (
	KeyFullURL KeyKind = "full_url"
	KeyDomain  KeyKind = "domain"
	KeyLocal   KeyKind = "local"
)

// Reason is the matching rule recorded for a group in the report.
type Reason string

const (
	ReasonExact  Reason = "exact"
	ReasonDomain Reason = "domain"
	ReasonLocal  Reason = "local"
)

// Key is a normalized grouping identity. Value holds the normalized URL,
// the domain or the folded title depending on Kind. Username is always the
// lowercased, trimmed username.
type Key struct {
	Kind     KeyKind
	Value    string
	Username string
}

// Reason returns the report reason for the key's rule.
func (k Key) Reason() Reason {
	switch k.Kind {
	case KeyDomain:
		return ReasonDomain
	case KeyLocal:
		return ReasonLocal
	default:
		return ReasonExact
	}
}

// Exact reports whether the key may drive an automatic delete recommendation.
func (k Key) Exact() bool {
	return k.Kind == KeyFullURL || k.Kind == KeyLocal
}

func (k Key) String() string {
	return k.Value + " | " + k.Username
}

// Action is the disposition of a record in a report.
type Action string

const (
	ActionKeep    Action = "KEEP"
	ActionDelete  Action = "DELETE"
	ActionArchive Action = "ARCHIVE"
	ActionReview  Action = "REVIEW"
)

// ParseAction trims and uppercases raw. Unknown values are returned as-is
// in their normalized form and classify as update-only.
func ParseAction(raw string) Action {
	return Action(strings.ToUpper(strings.TrimSpace(raw)))
}

// Known reports whether a is one of the four recognized actions.
func (a Action) Known() bool {
	switch a {
	case ActionKeep, ActionDelete, ActionArchive, ActionReview:
		return true
	}
	return false
}

// Group is a set of records sharing one key.
type Group struct {
	Key     Key
	Records []Record
}

// Member is a group member with its resolved recommendation.
type Member struct {
	Record      Record
	Username    string
	LastUpdated time.Time
	Newest      bool
	Action      Action
}

// ResolvedGroup is a reportable group (two or more members) with actions assigned.
type ResolvedGroup struct {
	ID      int
	Key     Key
	Members []Member
}

// Change is one actionable row loaded back from a report.
type Change struct {
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Action  Action `json:"action"`
	GroupID string `json:"group_id,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
