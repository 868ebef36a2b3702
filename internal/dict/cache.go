package dict

import (
	"context"
	"fmt"
	"strings"
)

// Entry is one persisted dictionary pair. Codes are issued by an
// auto-incrementing sequence per field and never reused.
type Entry struct {
	Name string `bson:"name"`
	Code int32  `bson:"code"`
}

// Reader loads all entries of one categorical field from the reference
// store. Implemented by Store; tests substitute a fake.
type Reader interface {
	ReadAll(ctx context.Context, field string) ([]Entry, error)
}

// Cache is a point-in-time mapping field -> (lowercased name -> code).
// It is built wholesale by Refresh and never mutated afterwards, so a flush
// can keep using the cache it started with while a newer one replaces it.
type Cache struct {
	fields map[string]map[string]int32
}

// NewCache returns an empty cache. Every lookup on it yields 0, which keeps
// the first cycle alive when the reference store is unreachable at startup.
func NewCache() *Cache {
	return &Cache{fields: map[string]map[string]int32{}}
}

// Refresh reads every tracked field's collection and builds a fresh cache.
// Any read failure aborts the whole refresh: the caller keeps its previous
// cache for the cycle rather than encoding against a half-built one.
func Refresh(ctx context.Context, r Reader, fields []string) (*Cache, error) {
	c := &Cache{fields: make(map[string]map[string]int32, len(fields))}
	for _, field := range fields {
		entries, err := r.ReadAll(ctx, field)
		if err != nil {
			return nil, fmt.Errorf("dict refresh %s: %w", field, err)
		}
		m := make(map[string]int32, len(entries))
		for _, e := range entries {
			m[strings.ToLower(e.Name)] = e.Code
		}
		c.fields[field] = m
	}
	return c, nil
}

// Lookup returns the code for a raw label, case-insensitively. Empty labels,
// unknown labels and untracked fields all yield the sentinel 0; an unseen
// categorical value must never block ingestion.
func (c *Cache) Lookup(field, raw string) int32 {
	if raw == "" {
		return 0
	}
	m, ok := c.fields[field]
	if !ok {
		return 0
	}
	return m[strings.ToLower(raw)]
}
