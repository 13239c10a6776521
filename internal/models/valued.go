package models

// Valued is an extracted scalar together with the model's confidence in it.
// Found is false when the source carried null, "N/A" or nothing at all.
// Scored is true when the source carried a confidence annotation for the field.
type Valued[T any] struct {
	Value      T       `json:"value"`
	Confidence float64 `json:"confidence"`
	Found      bool    `json:"found"`
	Scored     bool    `json:"scored"`
	Path       string  `json:"path,omitempty"`
}

// Or returns the value when it was found, otherwise def.
func (v Valued[T]) Or(def T) T {
	if !v.Found {
		return def
	}
	return v.Value
}

// Score reports the field's confidence annotation, if any.
func (v Valued[T]) Score() (Score, bool) {
	if !v.Scored {
		return Score{}, false
	}
	return Score{Path: v.Path, Confidence: v.Confidence}, true
}

// Score is a single confidence annotation located in an extracted document.
type Score struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
}

// Scorer is implemented by every confidence-carrying node of a Document.
type Scorer interface {
	Score() (Score, bool)
}

// Score lets an unmapped annotation take part in the same traversal as typed fields.
func (s Score) Score() (Score, bool) {
	return s, true
}
