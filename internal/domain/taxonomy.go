package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Colour is a map marker colour encoding the severity tier of a crime type.
type Colour string

const (
	ColourCritical Colour = "darkred"
	ColourSerious  Colour = "red"
	ColourNeutral  Colour = "dodgerblue"
)

// Icon is the marker symbol for a crime type.
type Icon string

// IconUnknown marks crime types outside the police.uk taxonomy.
const IconUnknown Icon = "❓"

// police.uk crime types.
const (
	CrimeAntiSocial      = "Anti-social behaviour"
	CrimeBicycleTheft    = "Bicycle theft"
	CrimeBurglary        = "Burglary"
	CrimeCriminalDamage  = "Criminal damage and arson"
	CrimeDrugs           = "Drugs"
	CrimeOther           = "Other crime"
	CrimeOtherTheft      = "Other theft"
	CrimeWeapons         = "Possession of weapons"
	CrimePublicOrder     = "Public order"
	CrimeRobbery         = "Robbery"
	CrimeShoplifting     = "Shoplifting"
	CrimeTheftFromPerson = "Theft from the person"
	CrimeVehicle         = "Vehicle crime"
	CrimeViolence        = "Violence and sexual offences"
)

var icons = map[string]Icon{
	CrimeAntiSocial:      "😈",
	CrimeBicycleTheft:    "🚲",
	CrimeBurglary:        "🏠",
	CrimeCriminalDamage:  "🔥",
	CrimeDrugs:           "💊",
	CrimeOther:           "😲",
	CrimeOtherTheft:      "😲",
	CrimeWeapons:         "🔫",
	CrimePublicOrder:     "😈",
	CrimeRobbery:         "👊",
	CrimeShoplifting:     "🏪",
	CrimeTheftFromPerson: "😲",
	CrimeVehicle:         "🚗",
	CrimeViolence:        "👊",
}

// ColourOf returns the severity colour for a crime type. Robbery and violence rank
// above burglary and vehicle crime; everything else, known or not, is neutral.
func ColourOf(crimeType string) Colour {
	switch crimeType {
	case CrimeRobbery, CrimeViolence:
		return ColourCritical
	case CrimeBurglary, CrimeVehicle:
		return ColourSerious
	default:
		return ColourNeutral
	}
}

// IconOf returns the marker symbol for an exact crime type, or IconUnknown.
func IconOf(crimeType string) Icon {
	if icon, ok := icons[crimeType]; ok {
		return icon
	}
	return IconUnknown
}

// KnownCrimeType reports whether crimeType is part of the police.uk taxonomy.
func KnownCrimeType(crimeType string) bool {
	_, ok := icons[crimeType]
	return ok
}

// CrimeTypes returns every known crime type in alphabetical order.
func CrimeTypes() []string {
	out := make([]string, 0, len(icons))
	for t := range icons {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Category is a map toggle covering one or more crime types.
type Category string

const (
	CategoryBurglary Category = "burglary"
	CategoryVehicle  Category = "vehicle"
	CategoryRobbery  Category = "robbery"
	CategoryViolent  Category = "violent"
	CategoryTheft    Category = "theft"
	CategoryOther    Category = "other"
)

// ErrUnknownCategory is returned by ParseCategory for names outside the toggle set.
var ErrUnknownCategory = errors.New("unknown category")

type categoryDef struct {
	label      string
	serious    bool
	crimeTypes []string
}

var categories = map[Category]categoryDef{
	CategoryBurglary: {label: "BURGLARY", serious: true, crimeTypes: []string{CrimeBurglary}},
	CategoryVehicle:  {label: "VEHICLE CRIME", serious: true, crimeTypes: []string{CrimeVehicle}},
	CategoryRobbery:  {label: "ROBBERY", serious: true, crimeTypes: []string{CrimeRobbery}},
	CategoryViolent:  {label: "VIOLENT CRIME", serious: true, crimeTypes: []string{CrimeViolence}},
	CategoryTheft: {label: "THEFT", crimeTypes: []string{
		CrimeBicycleTheft, CrimeOtherTheft, CrimeShoplifting, CrimeTheftFromPerson,
	}},
	CategoryOther: {label: "OTHER CRIME", crimeTypes: []string{
		CrimeAntiSocial, CrimeCriminalDamage, CrimeDrugs, CrimeWeapons,
	}},
}

// Categories returns the toggles in display order.
func Categories() []Category {
	return []Category{
		CategoryBurglary, CategoryVehicle, CategoryRobbery,
		CategoryViolent, CategoryTheft, CategoryOther,
	}
}

// ParseCategory accepts a toggle name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// CrimeTypes returns the crime types the toggle expands to. Unknown toggles expand
// to nothing.
func (c Category) CrimeTypes() []string {
	def, ok := categories[c]
	if !ok {
		return nil
	}
	return append([]string(nil), def.crimeTypes...)
}

// Label is the caption shown under the toggle.
func (c Category) Label() string {
	return categories[c].label
}

// Serious reports whether the toggle covers a high-severity group.
func (c Category) Serious() bool {
	return categories[c].serious
}

// ExpandCategories unions the crime types of every given toggle.
func ExpandCategories(cs []Category) map[string]struct{} {
	out := make(map[string]struct{})
	for _, c := range cs {
		for _, t := range categories[c].crimeTypes {
			out[t] = struct{}{}
		}
	}
	return out
}
