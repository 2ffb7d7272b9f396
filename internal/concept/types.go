package concept

import (
	"crypto/sha256"
	"encoding/hex"
)

// Type is the kind of mathematical entity a Concept names.
type Type string

const (
	TypeTheorem    Type = "theorem"
	TypeDefinition Type = "definition"
	TypeFunction   Type = "function"
	TypeObject     Type = "object"
)

// ParseType maps a stored type string back to a Type. Unrecognized strings
// fall back to TypeObject, the weakest class.
func ParseType(s string) Type {
	switch t := Type(s); t {
	case TypeTheorem, TypeDefinition, TypeFunction, TypeObject:
		return t
	}
	return TypeObject
}

// Concept is a named mathematical entity found in prose: a theorem, a
// definition, a function, or an object such as a space or number set.
// Immutable after extraction except RelatedConcepts, which graph
// construction fills in.
type Concept struct {
	ID              string   `json:"concept_id"`
	Name            string   `json:"name"`
	Type            Type     `json:"concept_type"`
	Notation        []string `json:"notation"`         // markup snippets seen with this concept
	RelatedConcepts []string `json:"related_concepts"` // graph neighbors, filled after build
	Equations       []string `json:"equations"`        // linked equation ids
	Frequency       int      `json:"frequency"`
	Importance      float64  `json:"importance_score"` // [0, 1]
}

// ConceptID derives a deterministic id from name and type. The same name
// can legitimately appear as two concepts of different types, so both feed
// the hash.
func ConceptID(name string, t Type) string {
	hash := sha256.Sum256([]byte(name + "|" + string(t)))
	return hex.EncodeToString(hash[:])[:16]
}
