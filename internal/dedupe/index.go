// Package dedupe groups fetched records into duplicate candidates and
// recommends an action for every member.
package dedupe

import (
	"github.com/starford/opdedupe/internal/models"
	"github.com/starford/opdedupe/internal/normalize"
)

var kindOrder = []models.KeyKind{models.KeyFullURL, models.KeyLocal, models.KeyDomain}

// Indexer builds the full-URL, local and domain indices over a record set.
type Indexer struct {
	norm normalize.Normalizer
}

// NewIndexer creates an Indexer using n for URL canonicalization.
func NewIndexer(n normalize.Normalizer) *Indexer {
	return &Indexer{norm: n}
}

// Index scans records once, inserting each into every bucket it qualifies
// for, and returns the buckets holding two or more records. Groups are
// ordered by rule (full URL, local, domain) and then by first discovery;
// members keep the order of records.
func (ix *Indexer) Index(records []models.Record) []models.Group {
	buckets := make(map[models.Key][]models.Record)
	order := make(map[models.KeyKind][]models.Key)

	for _, rec := range records {
		for _, k := range ix.Keys(rec) {
			if _, seen := buckets[k]; !seen {
				order[k.Kind] = append(order[k.Kind], k)
			}
			buckets[k] = append(buckets[k], rec)
		}
	}

	var groups []models.Group
	for _, kind := range kindOrder {
		for _, k := range order[kind] {
			members := buckets[k]
			if len(members) < 2 {
				continue
			}
			groups = append(groups, models.Group{Key: k, Records: members})
		}
	}
	return groups
}

// Keys returns the distinct keys rec contributes to. A record without a
// username contributes none. A URL on a local host yields a title-based
// key in place of its URL-based keys.
func (ix *Indexer) Keys(rec models.Record) []models.Key {
	user := normalize.UsernameKey(rec)
	if user == "" {
		return nil
	}

	seen := make(map[models.Key]struct{})
	var keys []models.Key
	add := func(k models.Key) {
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	for _, u := range rec.URLs {
		if ix.norm.IsLocal(u) {
			add(models.Key{Kind: models.KeyLocal, Value: normalize.TitleKey(rec.Title), Username: user})
			continue
		}
		domain := ix.norm.Domain(u)
		if domain == "" {
			continue
		}
		add(models.Key{Kind: models.KeyFullURL, Value: ix.norm.URL(u), Username: user})
		add(models.Key{Kind: models.KeyDomain, Value: domain, Username: user})
	}
	return keys
}
