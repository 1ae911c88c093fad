package catalog

import (
	"fmt"
	"time"

	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/sgp4"
	"github.com/akaltemamey/leedshack2026-launch-window-simulation/internal/tle"
)

// maxRejected caps the rejection list carried in a LoadResult.
const maxRejected = 100

// ParseFunc turns a record's two element lines into an element set.
type ParseFunc func(line1, line2 string) (Elements, error)

// ParseSGP4 is the production ParseFunc.
func ParseSGP4(line1, line2 string) (Elements, error) {
	el, err := sgp4.Parse(line1, line2)
	if err != nil {
		return nil, err
	}
	return el, nil
}

// Rejection describes one record left out of a catalog.
type Rejection struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// LoadResult is a best-effort catalog build: the catalog made of every record that
// parsed, plus an account of what was left out.
type LoadResult struct {
	Catalog       *Catalog
	Dropped       int
	Rejected      []Rejection // first maxRejected rejections
	FailedSources []tle.FailedSource
}

// Build parses every record of every source text, in order, into a catalog.
// Records whose element lines fail to parse are dropped, as are records repeating a
// catalog number already taken by an earlier record.
func Build(texts []tle.SourceText, parse ParseFunc, fetchedAt time.Time) *LoadResult {
	res := &LoadResult{}
	var objects []TrackedObject
	seen := make(map[string]bool)
	stats := make([]SourceStat, 0, len(texts))

	reject := func(source, name, reason string) {
		res.Dropped++
		if len(res.Rejected) < maxRejected {
			res.Rejected = append(res.Rejected, Rejection{Source: source, Name: name, Reason: reason})
		}
	}

	for _, st := range texts {
		records := tle.Split(st.Text)
		stat := SourceStat{Name: st.Source.Name, Records: len(records)}

		for _, rec := range records {
			el, err := parse(rec.Line1, rec.Line2)
			if err != nil {
				reject(st.Source.Name, rec.Name, err.Error())
				continue
			}
			if seen[rec.CatalogNumber] {
				reject(st.Source.Name, rec.Name, fmt.Sprintf("duplicate catalog number %q", rec.CatalogNumber))
				continue
			}
			seen[rec.CatalogNumber] = true

			objects = append(objects, TrackedObject{
				Elements:      el,
				Name:          rec.Name,
				Type:          st.Source.Name,
				Color:         st.Source.Color,
				CatalogNumber: rec.CatalogNumber,
			})
			stat.Loaded++
		}
		stats = append(stats, stat)
	}

	c := New(objects, fetchedAt)
	c.dropped = res.Dropped
	c.sources = stats
	res.Catalog = c
	return res
}
