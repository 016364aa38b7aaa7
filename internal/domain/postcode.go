package domain

import (
	"context"
	"log/slog"
	"strings"
)

// AreaLabel is the row label holding the MSOA name on the lookup page.
const AreaLabel = "Middle layer super output area"

// InvalidPostcodeMessage is shown when a postcode cannot be resolved.
const InvalidPostcodeMessage = "Please enter valid full postcode"

// AreaLookup fetches the local area for a normalised postcode. A lookup that
// completes without finding the area returns "" and a nil error.
type AreaLookup interface {
	LookupArea(ctx context.Context, postcode string) (string, error)
}

// Resolution is the outcome of a postcode lookup.
type Resolution struct {
	Area     string
	Resolved bool
}

// NotFound is the Resolution for any postcode that could not be mapped to an area.
var NotFound = Resolution{}

// Resolved wraps a found area name.
func Resolved(area string) Resolution {
	return Resolution{Area: area, Resolved: true}
}

// NormalizePostcode upper-cases a postcode and collapses its whitespace.
func NormalizePostcode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ResolvePostcode maps a postcode to its local area. Empty input returns NotFound
// without calling lookup; lookup errors are logged and also become NotFound.
func ResolvePostcode(ctx context.Context, postcode string, lookup AreaLookup, logger *slog.Logger) Resolution {
	postcode = NormalizePostcode(postcode)
	if postcode == "" || lookup == nil {
		return NotFound
	}

	area, err := lookup.LookupArea(ctx, postcode)
	if err != nil {
		logger.Warn("postcode lookup failed", "postcode", postcode, "error", err)
		return NotFound
	}
	if area == "" {
		logger.Debug("postcode not recognised", "postcode", postcode)
		return NotFound
	}
	return Resolved(area)
}

// PostcodeMessage is the text shown beside the postcode box: nothing when no
// postcode was entered, the area when resolved, InvalidPostcodeMessage otherwise.
func PostcodeMessage(postcode string, r Resolution) string {
	if NormalizePostcode(postcode) == "" {
		return ""
	}
	if !r.Resolved {
		return InvalidPostcodeMessage
	}
	return r.Area
}

// PostcodeResolver binds ResolvePostcode to a lookup implementation.
type PostcodeResolver struct {
	lookup AreaLookup
	logger *slog.Logger
}

// NewPostcodeResolver creates a resolver. A nil lookup resolves nothing.
func NewPostcodeResolver(lookup AreaLookup, logger *slog.Logger) *PostcodeResolver {
	return &PostcodeResolver{lookup: lookup, logger: logger}
}

// Resolve maps a postcode to its local area.
func (r *PostcodeResolver) Resolve(ctx context.Context, postcode string) Resolution {
	return ResolvePostcode(ctx, postcode, r.lookup, r.logger)
}
