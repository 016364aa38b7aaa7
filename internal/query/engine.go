package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
)

// Spec selects incidents by area and category toggle. An empty Areas selects the
// engine's default area; no active toggle means no category restriction.
type Spec struct {
	Areas   []string
	Toggles map[domain.Category]bool
}

// NewSpec builds a Spec with the given toggles switched on.
func NewSpec(areas []string, active ...domain.Category) Spec {
	toggles := make(map[domain.Category]bool, len(active))
	for _, c := range active {
		toggles[c] = true
	}
	return Spec{Areas: areas, Toggles: toggles}
}

// Active returns the switched-on toggles in display order.
func (s Spec) Active() []domain.Category {
	var out []domain.Category
	for _, c := range domain.Categories() {
		if s.Toggles[c] {
			out = append(out, c)
		}
	}
	return out
}

// Toggle is the state of one category toggle as returned to the map.
type Toggle struct {
	Category domain.Category `json:"category"`
	Label    string          `json:"label"`
	Active   bool            `json:"active"`
	Style    string          `json:"style,omitempty"`
}

// Result is the answer to a Spec.
type Result struct {
	Incidents    []domain.Incident `json:"incidents"`
	Centroid     Centroid          `json:"centroid"`
	AreaCentroid Centroid          `json:"area_centroid"`
	Areas        []string          `json:"areas"`
	Toggles      []Toggle          `json:"toggles"`
}

// Engine runs filter queries against a corpus.
type Engine struct {
	corpus      *Corpus
	defaultArea string
	metrics     *observability.Metrics
}

// NewEngine creates an Engine over corpus. defaultArea is used for queries
// without an area selection.
func NewEngine(corpus *Corpus, defaultArea string, metrics *observability.Metrics) *Engine {
	metrics.CorpusSize.Set(float64(corpus.Len()))
	return &Engine{
		corpus:      corpus,
		defaultArea: defaultArea,
		metrics:     metrics,
	}
}

// Query filters the corpus by area, then by the union of the active toggles'
// crime types. When the result has no usable coordinates the centroid falls back
// to the area-only centroid, then to the whole corpus.
func (e *Engine) Query(spec Spec) Result {
	start := time.Now()

	areas := e.resolveAreas(spec.Areas)
	inArea := e.corpus.inAreas(areas)
	areaCentroid := CentroidOf(inArea)

	active := spec.Active()
	matched := inArea
	if allowed := domain.ExpandCategories(active); len(allowed) > 0 {
		matched = make([]domain.Incident, 0, len(inArea))
		for _, inc := range inArea {
			if _, ok := allowed[inc.CrimeType]; ok {
				matched = append(matched, inc)
			}
		}
	}

	centroid := CentroidOf(matched)
	if !centroid.Valid {
		centroid = areaCentroid
		e.metrics.QueryFallbacks.Inc()
	}
	if !centroid.Valid {
		centroid = e.corpus.Centroid()
	}

	e.metrics.Queries.Inc()
	e.metrics.QueryMatched.Observe(float64(len(matched)))
	e.metrics.QueryDuration.Observe(time.Since(start).Seconds())

	return Result{
		Incidents:    matched,
		Centroid:     centroid,
		AreaCentroid: areaCentroid,
		Areas:        areas,
		Toggles:      toggles(spec),
	}
}

// Areas lists the selectable areas.
func (e *Engine) Areas() []string { return e.corpus.Areas() }

// Period labels the most recent month in the corpus, e.g. "Mar, 2024".
func (e *Engine) Period() string { return domain.PeriodLabel(e.corpus.LatestMonth()) }

// CheckReadiness returns nil once the engine holds at least one incident.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if e.corpus.Len() == 0 {
		return errors.New("incident corpus is empty")
	}
	return nil
}

func (e *Engine) resolveAreas(requested []string) []string {
	areas := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, a := range requested {
		if a = strings.TrimSpace(a); a != "" && !seen[a] {
			seen[a] = true
			areas = append(areas, a)
		}
	}
	if len(areas) == 0 {
		return []string{e.defaultArea}
	}
	return areas
}

func toggles(spec Spec) []Toggle {
	out := make([]Toggle, 0, len(domain.Categories()))
	for _, c := range domain.Categories() {
		t := Toggle{Category: c, Label: c.Label(), Active: spec.Toggles[c]}
		if t.Active {
			t.Style = "primary"
			if c.Serious() {
				t.Style = "danger"
			}
		}
		out = append(out, t)
	}
	return out
}
