// Package parser decodes the JSON emitted by the store CLI into domain records.
// Item shapes vary across CLI versions, so every optional attribute is read
// leniently.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/opdedupe/internal/models"
)

type rawField struct {
	ID      string          `json:"id"`
	Purpose string          `json:"purpose"`
	Label   string          `json:"label"`
	Value   json.RawMessage `json:"value"`
}

type rawItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Overview struct {
		Title string `json:"title"`
	} `json:"overview"`
	Vault struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"vault"`
	URL      string            `json:"url"`
	URLs     []json.RawMessage `json:"urls"`
	Fields   []rawField        `json:"fields"`
	Username *string           `json:"username"`

	CreatedAt      json.RawMessage `json:"created_at"`
	CreatedAtCamel json.RawMessage `json:"createdAt"`
	UpdatedAt      json.RawMessage `json:"updated_at"`
	UpdatedAtCamel json.RawMessage `json:"updatedAt"`
}

// ParseItem decodes a single `item get --format json` document.
func ParseItem(data []byte) (*models.Record, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parser: decode item: %w", err)
	}
	if strings.TrimSpace(raw.ID) == "" {
		return nil, fmt.Errorf("parser: item has no id")
	}

	rec := &models.Record{
		ID:        raw.ID,
		Title:     raw.Title,
		Vault:     raw.Vault.Name,
		URLs:      extractURLs(raw.URL, raw.URLs),
		CreatedAt: firstScalar(raw.CreatedAt, raw.CreatedAtCamel),
		UpdatedAt: firstScalar(raw.UpdatedAt, raw.UpdatedAtCamel),
	}
	if rec.Title == "" {
		rec.Title = raw.Overview.Title
	}
	if raw.Username != nil {
		rec.Username = *raw.Username
		rec.HasUsername = true
	}
	for _, f := range raw.Fields {
		rec.Fields = append(rec.Fields, models.Field{
			ID:      f.ID,
			Purpose: f.Purpose,
			Label:   f.Label,
			Value:   scalar(f.Value),
		})
	}
	return rec, nil
}

// ParseItemIDs decodes an `item list --format json` document into item IDs,
// preserving the CLI's order.
func ParseItemIDs(data []byte) ([]string, error) {
	var items []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parser: decode item list: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ID != "" {
			ids = append(ids, it.ID)
		}
	}
	return ids, nil
}

// ParseVaults decodes a `vault list --format json` document.
func ParseVaults(data []byte) ([]models.Vault, error) {
	var vaults []models.Vault
	if err := json.Unmarshal(data, &vaults); err != nil {
		return nil, fmt.Errorf("parser: decode vault list: %w", err)
	}
	return vaults, nil
}

// extractURLs merges the legacy url attribute with the urls array, which may
// hold objects with an href or bare strings. Duplicates are dropped.
func extractURLs(legacy string, entries []json.RawMessage) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	add(legacy)
	for _, e := range entries {
		var obj struct {
			Href string `json:"href"`
		}
		if err := json.Unmarshal(e, &obj); err == nil {
			add(obj.Href)
			continue
		}
		var s string
		if err := json.Unmarshal(e, &s); err == nil {
			add(s)
		}
	}
	return out
}

// firstScalar returns the first non-empty scalar among candidates.
func firstScalar(candidates ...json.RawMessage) string {
	for _, c := range candidates {
		if s := scalar(c); s != "" {
			return s
		}
	}
	return ""
}

// scalar renders a JSON string or number as text; anything else is empty.
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
