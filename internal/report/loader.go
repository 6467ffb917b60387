package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/starford/opdedupe/internal/apperr"
	"github.com/starford/opdedupe/internal/models"
)

const utf8BOM = "\ufeff"

// Report is a loaded report.
type Report struct {
	Schema  Schema
	Changes []models.Change
	// HasURL is false when the report has neither a url nor a urls column;
	// URL edits are then skipped.
	HasURL bool
	// Skipped counts rows dropped for an empty item_id.
	Skipped int
}

// LoadFile opens path and loads it.
func LoadFile(path string, logger *slog.Logger) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load parses a report in either schema. A missing required column returns
// an *apperr.SchemaError before any row is read.
func Load(r io.Reader, logger *slog.Logger) (*Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &apperr.SchemaError{Missing: []string{"item_id", "title", "keep_or_delete"}}
	}
	if err != nil {
		return nil, fmt.Errorf("report: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	rep := &Report{}
	actionCol := "keep_or_delete"
	rep.Schema = SchemaMulti
	if _, ok := cols["keep_or_delete"]; !ok {
		if _, ok := cols["action"]; ok {
			actionCol = "action"
			rep.Schema = SchemaExact
		}
	}

	var missing []string
	for _, c := range []string{"item_id", actionCol, "title"} {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &apperr.SchemaError{Missing: missing}
	}

	_, hasURL := cols["url"]
	_, hasURLs := cols["urls"]
	rep.HasURL = hasURL || hasURLs
	if !rep.HasURL {
		logger.Warn("report: no url or urls column; URL updates will be skipped")
	}

	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("report: line %d: %w", line, err)
		}

		id := get(row, "item_id")
		if id == "" {
			rep.Skipped++
			continue
		}

		var url string
		switch {
		case hasURL:
			url = get(row, "url")
		case hasURLs:
			url = primaryURL(get(row, "urls"))
		}

		c := models.Change{
			ItemID: id,
			Title:  get(row, "title"),
			URL:    url,
			Action: models.ParseAction(get(row, actionCol)),
		}
		if rep.Schema == SchemaMulti {
			c.GroupID = get(row, "group_id")
			c.Reason = get(row, "reason")
		} else {
			c.Reason = reasonForKeyType(get(row, "key_type"))
		}
		rep.Changes = append(rep.Changes, c)
	}

	logger.Info("report: loaded",
		slog.String("schema", string(rep.Schema)),
		slog.Int("rows", len(rep.Changes)),
		slog.Int("skipped", rep.Skipped))
	return rep, nil
}

// Parse loads a report held in memory.
func Parse(data []byte, logger *slog.Logger) (*Report, error) {
	return Load(bytes.NewReader(data), logger)
}

// primaryURL returns the first entry of a urls cell. Entries are separated
// by urlsSeparator; a comma without the space belongs to the URL, since a
// URL cannot hold a literal space.
func primaryURL(cell string) string {
	first, _, _ := strings.Cut(cell, urlsSeparator)
	return strings.TrimSpace(first)
}

func reasonForKeyType(kt string) string {
	switch kt {
	case KeyTypeFullURL:
		return string(models.ReasonExact)
	case KeyTypeLocalApp:
		return string(models.ReasonLocal)
	}
	return ""
}
