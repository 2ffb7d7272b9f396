package equation

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Extraction and classification defaults, used when config values are unset.
const (
	DefaultCacheSize     = 1024
	DefaultContextWindow = 240
	DefaultMaxLength     = 2000
)

// Classifier assigns an equation Type from the ordered rule table. Results
// are cached in a bounded LRU keyed by a hash of (markup, context), because
// watch mode re-classifies the same markup on every change cycle.
type Classifier struct {
	cache *lru.Cache[string, Type]
}

// NewClassifier creates a Classifier with the given cache capacity. A
// capacity of zero or less disables caching; classification stays correct
// either way since the rule table is a pure function.
func NewClassifier(cacheSize int) *Classifier {
	c := &Classifier{}
	if cacheSize > 0 {
		// lru.New only errors on non-positive sizes, which are excluded here.
		cache, err := lru.New[string, Type](cacheSize)
		if err == nil {
			c.cache = cache
		}
	}
	return c
}

// Classify returns the Type for markup appearing in the given surrounding
// context. Deterministic: identical (markup, context) pairs always yield
// the same Type.
func (c *Classifier) Classify(markup, context string) Type {
	if strings.TrimSpace(markup) == "" {
		return TypeUnknown
	}
	if c.cache == nil {
		return classify(markup, context)
	}

	key := cacheKey(markup, context)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}
	result := classify(markup, context)
	c.cache.Add(key, result)
	return result
}

// classify walks the rule table in order. The first rule wins whose
// structural pattern matches the markup or whose keyword occurs in the
// lowercased markup plus context; nothing matching means TypeUnknown.
func classify(markup, context string) Type {
	haystack := strings.ToLower(markup + " " + context)
	for _, rule := range classificationRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(markup) {
				return rule.equationType
			}
		}
		for _, keyword := range rule.keywords {
			if strings.Contains(haystack, keyword) {
				return rule.equationType
			}
		}
	}
	return TypeUnknown
}

// cacheKey hashes the (markup, context) pair. Contexts run to hundreds of
// characters, so keys are fixed-size hashes rather than raw strings.
func cacheKey(markup, context string) string {
	hash := sha256.Sum256([]byte(markup + "\x00" + context))
	return hex.EncodeToString(hash[:16]) // 16 bytes is plenty for a cache key
}
