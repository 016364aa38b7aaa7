package http

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/couchcryptid/crime-map/internal/domain"
	"github.com/go-playground/validator/v10"
)

type incidentsRequest struct {
	Areas      []string `validate:"max=50,dive,max=120"`
	Categories []string `validate:"dive,oneof=burglary vehicle robbery violent theft other"`
}

// newIncidentsRequest reads repeated or comma-separated area and category
// parameters. Category names are lower-cased before validation.
func newIncidentsRequest(q url.Values) incidentsRequest {
	var req incidentsRequest
	req.Areas = append(req.Areas, q["area"]...)
	for _, v := range q["category"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
				req.Categories = append(req.Categories, name)
			}
		}
	}
	return req
}

type postcodeRequest struct {
	Postcode string `validate:"max=16"`
}

// newPostcodeRequest normalises the postcode parameter so padding and case
// never count against the length limit.
func newPostcodeRequest(q url.Values) postcodeRequest {
	return postcodeRequest{Postcode: domain.NormalizePostcode(q.Get("postcode"))}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "oneof" {
		return fmt.Sprintf("invalid %s %q: must be one of %s", strings.ToLower(fe.StructField()), fe.Value(), fe.Param())
	}
	return fmt.Sprintf("invalid %s: failed %s=%s", strings.ToLower(fe.StructField()), fe.Tag(), fe.Param())
}
