// Package report serializes resolved duplicate groups to an editable CSV
// report and loads a (possibly hand-edited) report back into changes.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
	"github.com/starford/opdedupe/internal/storage"
)

// Schema selects the report column layout.
type Schema string

const (
	// SchemaMulti covers every matching rule, one row per (group, member).
	SchemaMulti Schema = "multi"
	// SchemaExact is the legacy layout holding only full-URL and local groups.
	SchemaExact Schema = "exact"
)

// Key types written to the exact schema.
const (
	KeyTypeFullURL  = "full_url"
	KeyTypeLocalApp = "local_app"
)

// urlsSeparator joins the entries of the multi schema's urls cell.
const urlsSeparator = ", "

// MultiHeader is the multi-rule column set.
var MultiHeader = []string{
	"group_id", "reason", "key", "keep_or_delete", "item_id", "title",
	"vault", "urls", "username", "last_updated", "is_newer",
}

// ExactHeader is the exact-key column set.
var ExactHeader = []string{
	"key_type", "url_or_title_key", "username", "item_id", "title",
	"url", "updatedAt", "is_newest", "action",
}

// ParseSchema validates a schema name. Empty selects SchemaMulti.
func ParseSchema(s string) (Schema, error) {
	switch Schema(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemaMulti:
		return SchemaMulti, nil
	case SchemaExact:
		return SchemaExact, nil
	}
	return "", fmt.Errorf("report: unknown schema %q", s)
}

// Writer renders resolved groups in one schema.
type Writer struct {
	schema Schema
	norm   normalize.Normalizer
}

// NewWriter creates a Writer. norm must be the normalizer that built the groups.
func NewWriter(schema Schema, norm normalize.Normalizer) *Writer {
	if schema == "" {
		schema = SchemaMulti
	}
	return &Writer{schema: schema, norm: norm}
}

// Schema returns the writer's layout.
func (w *Writer) Schema() Schema { return w.schema }

// Header returns the column names for the writer's schema.
func (w *Writer) Header() []string {
	if w.schema == SchemaExact {
		return ExactHeader
	}
	return MultiHeader
}

// Rows returns the data rows for groups, without the header.
func (w *Writer) Rows(groups []models.ResolvedGroup) [][]string {
	var rows [][]string
	for _, g := range groups {
		if w.schema == SchemaExact {
			if !g.Key.Exact() {
				continue
			}
			rows = append(rows, w.exactRows(g)...)
			continue
		}
		rows = append(rows, w.multiRows(g)...)
	}
	return rows
}

func (w *Writer) multiRows(g models.ResolvedGroup) [][]string {
	rows := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		newer := ""
		if m.Newest {
			newer = "YES"
		}
		rows = append(rows, []string{
			strconv.Itoa(g.ID),
			string(g.Key.Reason()),
			g.Key.String(),
			string(m.Action),
			m.Record.ID,
			m.Record.Title,
			m.Record.Vault,
			strings.Join(m.Record.URLs, urlsSeparator),
			m.Username,
			normalize.FormatTimestamp(m.LastUpdated),
			newer,
		})
	}
	return rows
}

func (w *Writer) exactRows(g models.ResolvedGroup) [][]string {
	keyType := KeyTypeFullURL
	if g.Key.Kind == models.KeyLocal {
		keyType = KeyTypeLocalApp
	}
	rows := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		newest := "NO"
		if m.Newest {
			newest = "YES"
		}
		rows = append(rows, []string{
			keyType,
			g.Key.Value,
			g.Key.Username,
			m.Record.ID,
			m.Record.Title,
			w.matchingURL(g.Key, m.Record),
			normalize.FormatTimestamp(m.LastUpdated),
			newest,
			string(m.Action),
		})
	}
	return rows
}

// matchingURL returns the record URL that produced key, falling back to the
// first URL.
func (w *Writer) matchingURL(k models.Key, rec models.Record) string {
	for _, u := range rec.URLs {
		switch k.Kind {
		case models.KeyFullURL:
			if w.norm.URL(u) == k.Value {
				return strings.TrimSpace(u)
			}
		case models.KeyLocal:
			if w.norm.IsLocal(u) {
				return strings.TrimSpace(u)
			}
		}
	}
	if len(rec.URLs) > 0 {
		return strings.TrimSpace(rec.URLs[0])
	}
	return ""
}

// Encode renders the full CSV document and returns it with the number of data rows.
func (w *Writer) Encode(groups []models.ResolvedGroup) ([]byte, int, error) {
	rows := w.Rows(groups)
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(w.Header()); err != nil {
		return nil, 0, fmt.Errorf("report: write header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return nil, 0, fmt.Errorf("report: write rows: %w", err)
	}
	return buf.Bytes(), len(rows), nil
}

// WriteFile atomically writes the report to path and returns the number of
// data rows written.
func (w *Writer) WriteFile(path string, groups []models.ResolvedGroup) (int, error) {
	data, n, err := w.Encode(groups)
	if err != nil {
		return 0, err
	}
	if err := storage.WriteFile(path, data); err != nil {
		return 0, fmt.Errorf("report: %w", err)
	}
	return n, nil
}
