package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/couchcryptid/crime-map/internal/observability"
)

// IncidentTransformer implements Transformer using the domain parse and
// classification functions.
type IncidentTransformer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewTransformer creates an IncidentTransformer.
func NewTransformer(logger *slog.Logger, metrics *observability.Metrics) *IncidentTransformer {
	return &IncidentTransformer{
		logger:  logger,
		metrics: metrics,
	}
}

func (t *IncidentTransformer) Transform(_ context.Context, raw domain.RawRecord) (domain.Incident, error) {
	inc, err := domain.ParseIncident(raw)
	if err != nil {
		return domain.Incident{}, err
	}

	if !domain.KnownCrimeType(inc.CrimeType) {
		t.metrics.UnknownCrimeTypes.Inc()
		t.logger.Debug("unknown crime type, using fallback icon",
			"crime_type", inc.CrimeType,
			"source", raw.Ref.Source,
			"row", raw.Ref.Row,
		)
	}

	return domain.Classify(inc), nil
}
