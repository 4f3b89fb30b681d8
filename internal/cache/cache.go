// Package cache holds loaded table fragments keyed by the full resolved
// (dataset, regid, cfgid, tgtid, measure) tuple.
package cache

import (
	"context"
	"strings"

	"github.com/repeateval/repeat/internal/identity"
	"github.com/repeateval/repeat/internal/table"
)

// Kind names a cache backend.
type Kind string

const (
	KindNone   Kind = "none"
	KindMemory Kind = "memory"
	KindRedis  Kind = "redis"
)

// Key identifies one loaded fragment. Suffix distinguishes files of the
// same measure family (mean, sdev and size for averaged measures).
type Key struct {
	Dataset string
	RegID   string
	CfgID   int
	TgtID   string
	Measure string
	Suffix  string

	// Revision is the store revision of the file the fragment was read
	// from, so a rewritten file never hits an entry of its old content.
	Revision string
}

// Parts returns the key fields in order.
func (k Key) Parts() []string {
	cfg := ""
	if k.CfgID > 0 {
		cfg = identity.FormatCfgID(k.CfgID)
	}
	parts := []string{k.Dataset, k.RegID, cfg, k.TgtID, k.Measure, k.Suffix}
	if k.Revision != "" {
		parts = append(parts, k.Revision)
	}
	return parts
}

// String renders the key as a readable path-like string.
func (k Key) String() string {
	return strings.Join(k.Parts(), "/")
}

// Cache stores table fragments. Implementations return tables the caller
// may modify.
type Cache interface {
	// Get returns a copy of the cached table.
	Get(ctx context.Context, key Key) (*table.Table, bool)

	// Set stores a copy of t.
	Set(ctx context.Context, key Key, t *table.Table)

	// Purge drops every entry.
	Purge(ctx context.Context) error

	// Len returns the number of entries, or -1 when unknown.
	Len() int

	// Close releases backend resources.
	Close() error
}

// None never stores anything.
type None struct{}

func (None) Get(context.Context, Key) (*table.Table, bool) { return nil, false }
func (None) Set(context.Context, Key, *table.Table)        {}
func (None) Purge(context.Context) error                   { return nil }
func (None) Len() int                                      { return 0 }
func (None) Close() error                                  { return nil }
