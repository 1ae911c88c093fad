// Package catalog holds the tracked-object catalog: the parsed element sets plus the
// per-object metadata the host renders. A Catalog is immutable once built and is
// replaced wholesale on every refresh.
package catalog

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Elements is an opaque orbital element set that can be propagated to an instant.
// Implementations must be safe for concurrent use.
type Elements interface {
	// PositionAt returns the ECI position in kilometers, or an error when the
	// element set yields no usable position at t.
	PositionAt(t time.Time) (r3.Vec, error)
}

// TrackedObject is one catalog member.
type TrackedObject struct {
	Elements      Elements
	Name          string
	Type          string // source category label
	Color         [3]float32
	CatalogNumber string
}

// SourceStat counts what one source contributed to a catalog.
type SourceStat struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Loaded  int    `json:"loaded"`
}

// Catalog is an ordered, immutable set of tracked objects. Order is insertion order
// across sources; position buffers reported to the host are aligned to it.
type Catalog struct {
	objects   []TrackedObject
	fetchedAt time.Time
	dropped   int
	sources   []SourceStat
}

// New builds a catalog from objects, which it takes ownership of.
func New(objects []TrackedObject, fetchedAt time.Time) *Catalog {
	return &Catalog{objects: objects, fetchedAt: fetchedAt}
}

// Len returns the number of objects. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.objects)
}

// At returns the i-th object.
func (c *Catalog) At(i int) *TrackedObject {
	return &c.objects[i]
}

// FetchedAt is when the source texts behind this catalog were fetched.
func (c *Catalog) FetchedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.fetchedAt
}

// Dropped is the number of records rejected while building the catalog.
func (c *Catalog) Dropped() int {
	if c == nil {
		return 0
	}
	return c.dropped
}

// Sources returns per-source load counts, in source order.
func (c *Catalog) Sources() []SourceStat {
	if c == nil {
		return nil
	}
	return c.sources
}
