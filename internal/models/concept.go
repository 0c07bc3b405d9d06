package models

// Concept is a topic/skill label produced by the concept extraction step.
// Confidence is in [0,1]; the engine treats concepts as already validated.
type Concept struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ConceptNames returns the names of the given concepts, in order.
func ConceptNames(concepts []Concept) []string {
	names := make([]string, len(concepts))
	for i, c := range concepts {
		names[i] = c.Name
	}
	return names
}
