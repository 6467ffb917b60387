// Package models defines the domain types for opdedupe.
package models

import "strings"

// Field is one typed field of a store item.
type Field struct {
	ID      string `json:"id,omitempty"`
	Purpose string `json:"purpose,omitempty"`
	Label   string `json:"label,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Record is one store entry as fetched from the CLI.
type Record struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Vault  string   `json:"vault,omitempty"`
	URLs   []string `json:"urls,omitempty"`
	Fields []Field  `json:"fields,omitempty"`

	// Username is the top-level username attribute; HasUsername tells an
	// absent attribute apart from an empty one.
	Username    string `json:"username,omitempty"`
	HasUsername bool   `json:"-"`

	// Raw timestamps: ISO-8601 text or a decimal epoch. Either may be empty.
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// HasURL reports whether u is one of the record's URLs, ignoring surrounding space.
func (r Record) HasURL(u string) bool {
	u = strings.TrimSpace(u)
	for _, have := range r.URLs {
		if strings.TrimSpace(have) == u {
			return true
		}
	}
	return false
}

// Vault is a store vault as listed by the CLI.
type Vault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
