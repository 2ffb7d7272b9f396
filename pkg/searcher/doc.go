// Package searcher ranks cataloged equations against user queries.
//
// Three implementations of the Searcher interface cover the two ranking
// signals and their combination:
//
//   - CatalogSearcher runs keyword terms through the catalog's BM25
//     ranking.
//   - SimilaritySearcher scores query markup against one analyzed
//     document's equations.
//   - Blend runs both sides and merges their rankings with reciprocal
//     rank fusion, so an equation surfacing in both lists outranks one
//     found by a single side.
//
// A hybrid lookup wires the chain explicitly:
//
//	lexical, _ := searcher.NewCatalogSearcher(catalog)
//	similar, _ := searcher.NewSimilaritySearcher(builder, idx)
//	blend, _ := searcher.NewBlend(lexical, similar, searcher.Mix{})
//	results, err := blend.SearchHybrid(ctx, "energy mass", `E = mc^2`, 10)
//
// Blend degrades rather than fails: with one side absent, or one side
// erroring mid-query, the surviving ranking is returned as is. Every
// searcher in this package is safe for concurrent use.
package searcher
