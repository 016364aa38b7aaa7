// Package query answers area and category filter queries over an immutable,
// classified incident corpus.
package query

import (
	"context"
	"sort"

	"github.com/couchcryptid/crime-map/internal/domain"
)

// Centroid is the mean position of a set of incidents. Valid is false when no
// incident in the set had usable coordinates.
type Centroid struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Valid bool    `json:"valid"`
}

// CentroidOf averages the coordinates of incidents that have both latitude and
// longitude; the rest are ignored.
func CentroidOf(incidents []domain.Incident) Centroid {
	var sumLat, sumLon float64
	var n int
	for _, inc := range incidents {
		lat, lon, ok := inc.Coordinates()
		if !ok {
			continue
		}
		sumLat += lat
		sumLon += lon
		n++
	}
	if n == 0 {
		return Centroid{}
	}
	return Centroid{Lat: sumLat / float64(n), Lon: sumLon / float64(n), Valid: true}
}

// Corpus is a read-only set of classified incidents indexed by area. It is safe
// for concurrent use.
type Corpus struct {
	incidents   []domain.Incident
	byArea      map[string][]int
	areas       []string
	centroid    Centroid
	latestMonth string
}

// NewCorpus deep-copies incidents into a new corpus.
func NewCorpus(incidents []domain.Incident) *Corpus {
	c := &Corpus{
		incidents: make([]domain.Incident, len(incidents)),
		byArea:    make(map[string][]int),
	}
	for i, inc := range incidents {
		c.incidents[i] = inc.Clone()
	}
	for i, inc := range c.incidents {
		if _, ok := c.byArea[inc.Area]; !ok {
			c.areas = append(c.areas, inc.Area)
		}
		c.byArea[inc.Area] = append(c.byArea[inc.Area], i)
		if inc.Month > c.latestMonth {
			c.latestMonth = inc.Month
		}
	}
	sort.Strings(c.areas)
	c.centroid = CentroidOf(c.incidents)
	return c
}

// Len returns the number of incidents.
func (c *Corpus) Len() int { return len(c.incidents) }

// Areas returns the distinct area names in alphabetical order.
func (c *Corpus) Areas() []string {
	return append([]string(nil), c.areas...)
}

// LatestMonth returns the most recent "YYYY-MM" month in the corpus.
func (c *Corpus) LatestMonth() string { return c.latestMonth }

// Centroid returns the centroid of the whole corpus.
func (c *Corpus) Centroid() Centroid { return c.centroid }

// inAreas returns copies of the incidents of the given areas in corpus order.
func (c *Corpus) inAreas(areas []string) []domain.Incident {
	var idx []int
	seen := make(map[string]bool, len(areas))
	for _, a := range areas {
		if seen[a] {
			continue
		}
		seen[a] = true
		idx = append(idx, c.byArea[a]...)
	}
	sort.Ints(idx)

	out := make([]domain.Incident, len(idx))
	for i, j := range idx {
		out[i] = c.incidents[j].Clone()
	}
	return out
}

// Builder collects classified incidents from the pipeline into a Corpus.
// It implements pipeline.BatchLoader.
type Builder struct {
	incidents []domain.Incident
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// LoadBatch appends a batch of classified incidents.
func (b *Builder) LoadBatch(_ context.Context, incidents []domain.Incident) error {
	b.incidents = append(b.incidents, incidents...)
	return nil
}

// Build freezes the collected incidents into a Corpus.
func (b *Builder) Build() *Corpus {
	return NewCorpus(b.incidents)
}
