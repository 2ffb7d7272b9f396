package equation

import (
	"crypto/sha256"
	"encoding/hex"
)

// Type buckets an equation into a fixed vocabulary of mathematical shapes.
type Type string

const (
	TypeLinear       Type = "linear"
	TypeQuadratic    Type = "quadratic"
	TypeDifferential Type = "differential"
	TypeIntegral     Type = "integral"
	TypeSummation    Type = "summation"
	TypeMatrix       Type = "matrix"
	TypeProbability  Type = "probability"
	TypeUnknown      Type = "unknown"
)

// ParseType maps a stored type string back to a Type. Anything outside the
// vocabulary becomes TypeUnknown so imported data cannot smuggle in new types.
func ParseType(s string) Type {
	switch t := Type(s); t {
	case TypeLinear, TypeQuadratic, TypeDifferential, TypeIntegral,
		TypeSummation, TypeMatrix, TypeProbability, TypeUnknown:
		return t
	}
	return TypeUnknown
}

// Equation is one extracted mathematical expression. Content-addressed:
// identical raw markup always hashes to the same ID, which is what makes
// re-extraction idempotent. Immutable after extraction.
type Equation struct {
	ID               string   `json:"equation_id"`
	RawMarkup        string   `json:"raw_markup"`
	NormalizedMarkup string   `json:"normalized_markup"`
	Variables        []string `json:"variables"` // sorted sets
	Functions        []string `json:"functions"`
	Operators        []string `json:"operators"`
	Constants        []string `json:"constants"`
	Type             Type     `json:"equation_type"`
	Complexity       float64  `json:"complexity_score"` // [0, 10]
	Context          string   `json:"context,omitempty"`
	Labels           []string `json:"labels"`
	References       []string `json:"references"`
}

// ContentID derives a deterministic equation ID from raw markup.
func ContentID(markup string) string {
	hash := sha256.Sum256([]byte(markup))
	return hex.EncodeToString(hash[:])[:16]
}
