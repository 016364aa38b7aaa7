package domain

// Classify sets Colour and Icon from the crime type. Earlier derived values are
// overwritten, so classifying twice yields the same record.
func Classify(inc Incident) Incident {
	inc.Colour = ColourOf(inc.CrimeType)
	inc.Icon = IconOf(inc.CrimeType)
	return inc
}

// ClassifyAll classifies every record into a new slice; the input is left untouched.
func ClassifyAll(incidents []Incident) []Incident {
	out := make([]Incident, len(incidents))
	for i, inc := range incidents {
		out[i] = Classify(inc)
	}
	return out
}
