// Package domain models street-level crime records published by data.police.uk.
//
// # Data Source
//
// Records come from the monthly "street" CSV extracts at https://data.police.uk/data/,
// one file per force per month (e.g. "2024-03-south-yorkshire-street.csv"). Files are
// enriched with an "MSOA" column (the Middle layer Super Output Area the record falls in)
// before they reach this service.
//
// # Column Conventions
//
//	Crime ID               64-char hash; empty for anti-social behaviour reports
//	Month                  "YYYY-MM", the month the crime was reported
//	Falls within           reporting police force
//	Longitude, Latitude    WGS-84 decimal degrees; empty when the location is withheld
//	Location               anonymised description, e.g. "On or near Parking Area"
//	Crime type             one of the fourteen police.uk categories (see [CrimeTypes])
//	Last outcome category  empty for anti-social behaviour and unresolved cases
//	MSOA                   local area name; empty rows are mapped to [NoLocation]
//
// # Derived Columns
//
// Classification adds COLOUR (severity tier) and ICON (symbol per crime type). Both are
// pure functions of "Crime type" and are recomputed, never appended, on every run:
//
//	darkred     Robbery, Violence and sexual offences
//	red         Burglary, Vehicle crime
//	dodgerblue  everything else, including unrecognised types
//
// Unrecognised crime types get [IconUnknown] so a classified record never carries an
// empty icon.
//
// # Category Toggles
//
// The map offers six toggles, each expanding to one or more crime types:
//
//	burglary  Burglary
//	vehicle   Vehicle crime
//	robbery   Robbery
//	violent   Violence and sexual offences
//	theft     Bicycle theft, Other theft, Shoplifting, Theft from the person
//	other     Anti-social behaviour, Criminal damage and arson, Drugs, Possession of weapons
//
// "Other crime" and "Public order" are classified but belong to no toggle, so they only
// show up when no toggle is active.
package domain
