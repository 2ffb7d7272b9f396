package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// MathTokenizerName is the name of the custom LaTeX tokenizer.
	MathTokenizerName = "mathtok"

	// MathStopFilterName is the name of the custom stop word filter.
	MathStopFilterName = "math_stop"

	// MathAnalyzerName is the name of the custom math analyzer.
	MathAnalyzerName = "math_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(MathTokenizerName, mathTokenizerConstructor)
	_ = registry.RegisterTokenFilter(MathStopFilterName, mathStopFilterConstructor)
}

// errCatalogClosed is returned by every catalog operation after Close.
var errCatalogClosed = errors.New("catalog is closed")

// BleveCatalog implements Catalog using Bleve v2.
// BoltDB gives it an exclusive file lock, so it is single-process only.
type BleveCatalog struct {
	mu     sync.RWMutex
	index  bleve.Index
	dir    string
	config CatalogConfig
	closed bool
}

var _ Catalog = (*BleveCatalog)(nil)

// bleveCatalogDoc is the document structure for Bleve indexing.
type bleveCatalogDoc struct {
	DocumentID   string `json:"document_id"`
	EquationType string `json:"equation_type"`
	Content      string `json:"content"`
}

// NewBleveCatalog creates a Bleve-backed catalog at path, or an in-memory
// one when path is empty. A catalog directory left corrupted by a crash or
// a binary upgrade is wiped and rebuilt empty.
func NewBleveCatalog(path string, cfg CatalogConfig) (*BleveCatalog, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultCatalogConfig().MaxResults
	}

	im, err := buildCatalogMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog mapping: %w", err)
	}

	var ix bleve.Index
	if path == "" {
		ix, err = bleve.NewMemOnly(im)
	} else {
		ix, err = openDiskCatalog(path, im)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open catalog: %w", err)
	}

	return &BleveCatalog{
		index:  ix,
		dir:    path,
		config: cfg,
	}, nil
}

// openDiskCatalog opens the Bleve directory at path, creating it when
// absent. A directory that fails the metadata probe, or that Bleve refuses
// to open with a known corruption signature, is discarded and recreated.
func openDiskCatalog(path string, m *mapping.IndexMappingImpl) (bleve.Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	if probeErr := catalogMetaIntact(path); probeErr != nil {
		if err := discardCatalog(path, probeErr); err != nil {
			return nil, err
		}
	}

	ix, err := bleve.Open(path)
	switch {
	case err == nil:
		return ix, nil
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		return bleve.New(path, m)
	case looksCorrupted(err):
		if wipeErr := discardCatalog(path, err); wipeErr != nil {
			return nil, wipeErr
		}
		return bleve.New(path, m)
	default:
		return nil, err
	}
}

// catalogMetaIntact probes an existing Bleve directory for a readable
// index_meta.json. A missing directory is fine, a fresh catalog will be
// created there; a directory without parseable metadata is a leftover
// from an interrupted run and has to be rebuilt.
func catalogMetaIntact(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	switch {
	case os.IsNotExist(err):
		return errors.New("no index_meta.json in catalog directory")
	case err != nil:
		return fmt.Errorf("unreadable index_meta.json: %w", err)
	case len(data) == 0:
		return errors.New("index_meta.json is zero bytes")
	case !json.Valid(data):
		return errors.New("index_meta.json does not parse")
	}
	return nil
}

// looksCorrupted reports whether err carries a known Bleve corruption
// signature. Bleve surfaces most of these as bare strings, so substring
// matching is what we have.
func looksCorrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
		return true
	}
	text := err.Error()
	for _, marker := range []string{
		"unexpected end of JSON",
		"error parsing mapping JSON",
		"failed to load segment",
		"error opening bolt",
		"no such file or directory",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// discardCatalog removes a corrupted catalog directory so it can be rebuilt.
func discardCatalog(path string, cause error) error {
	slog.Warn("catalog_corrupted",
		slog.String("path", path),
		slog.String("error", cause.Error()))

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("catalog corrupted at %s and cannot remove: %w (original error: %v)", path, err, cause)
	}

	slog.Info("catalog_cleared",
		slog.String("path", path),
		slog.String("reason", "corruption detected, please re-analyze"))
	return nil
}

// buildCatalogMapping wires the math analyzer into the Bleve mapping. The
// content field goes through it; document ids and equation types are
// indexed verbatim so term queries can filter on them exactly.
func buildCatalogMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomAnalyzer(MathAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     MathTokenizerName,
		"token_filters": []string{lowercase.Name, MathStopFilterName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register math analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()
	for field, analyzerName := range map[string]string{
		"content":       MathAnalyzerName,
		"document_id":   keyword.Name,
		"equation_type": keyword.Name,
	} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzerName
		doc.AddFieldMappingsAt(field, fm)
	}

	im.DefaultMapping = doc
	im.DefaultAnalyzer = MathAnalyzerName
	return im, nil
}

// Index adds entries to the catalog. Bleve replaces documents that share an id.
func (c *BleveCatalog) Index(ctx context.Context, entries []*CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	batch := c.index.NewBatch()
	for _, entry := range entries {
		doc := bleveCatalogDoc{
			DocumentID:   entry.DocumentID,
			EquationType: entry.EquationType,
			Content:      entry.searchText(),
		}
		if err := batch.Index(entry.EquationID, doc); err != nil {
			return fmt.Errorf("failed to index entry %s: %w", entry.EquationID, err)
		}
	}

	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to apply catalog batch: %w", err)
	}
	return nil
}

// Search returns entries matching query, scored by BM25.
func (c *BleveCatalog) Search(ctx context.Context, queryStr string, limit int) ([]*CatalogResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errCatalogClosed
	}
	if strings.TrimSpace(queryStr) == "" {
		return []*CatalogResult{}, nil
	}
	if limit <= 0 {
		limit = c.config.MaxResults
	}

	mq := bleve.NewMatchQuery(queryStr)
	mq.SetField("content")

	req := bleve.NewSearchRequest(mq)
	req.Size = limit
	req.Fields = []string{"document_id", "equation_type"}
	req.IncludeLocations = true // matched terms come out of the locations

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}

	results := make([]*CatalogResult, 0, len(res.Hits))
	for _, h := range res.Hits {
		results = append(results, &CatalogResult{
			EquationID:   h.ID,
			DocumentID:   hitStringField(h, "document_id"),
			EquationType: hitStringField(h, "equation_type"),
			Score:        h.Score,
			MatchedTerms: matchedContentTerms(h),
		})
	}
	return results, nil
}

// Delete removes entries by equation id.
func (c *BleveCatalog) Delete(ctx context.Context, equationIDs []string) error {
	if len(equationIDs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	del := c.index.NewBatch()
	for _, id := range equationIDs {
		del.Delete(id)
	}

	if err := c.index.Batch(del); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

// DeleteDocument removes every entry indexed for a document.
func (c *BleveCatalog) DeleteDocument(ctx context.Context, documentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errCatalogClosed
	}

	// The id field is indexed verbatim, so a term query matches exactly.
	tq := bleve.NewTermQuery(documentID)
	tq.SetField("document_id")

	ids, err := c.matchingIDs(ctx, tq)
	if err != nil {
		return fmt.Errorf("failed to find document entries: %w", err)
	}

	del := c.index.NewBatch()
	for _, id := range ids {
		del.Delete(id)
	}

	if err := c.index.Batch(del); err != nil {
		return fmt.Errorf("failed to delete document entries: %w", err)
	}
	return nil
}

// Count returns the number of cataloged equations.
func (c *BleveCatalog) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return 0, errCatalogClosed
	}

	count, err := c.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return int(count), nil
}

// AllIDs returns all cataloged equation ids.
// Used for consistency checking against the document store.
func (c *BleveCatalog) AllIDs() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return nil, errCatalogClosed
	}

	ids, err := c.matchingIDs(context.Background(), bleve.NewMatchAllQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to search for all ids: %w", err)
	}
	return ids, nil
}

// Close closes the catalog.
func (c *BleveCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	if c.index != nil {
		return c.index.Close()
	}
	return nil
}

// matchingIDs runs q and returns just the ids of every hit. Callers hold
// the mutex.
func (c *BleveCatalog) matchingIDs(ctx context.Context, q query.Query) ([]string, error) {
	total, _ := c.index.DocCount()

	req := bleve.NewSearchRequest(q)
	req.Size = int(total)
	req.Fields = []string{}

	res, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// hitStringField reads a stored string field from a search hit.
func hitStringField(hit *search.DocumentMatch, name string) string {
	if v, ok := hit.Fields[name].(string); ok {
		return v
	}
	return ""
}

// matchedContentTerms collects the distinct query terms that hit the
// content field.
func matchedContentTerms(hit *search.DocumentMatch) []string {
	seen := make(map[string]struct{})
	for term := range hit.Locations["content"] {
		seen[term] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for term := range seen {
		out = append(out, term)
	}
	return out
}

func mathTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveMathTokenizer{}, nil
}

// bleveMathTokenizer adapts TokenizeMath to the Bleve analysis chain.
type bleveMathTokenizer struct{}

// Tokenize implements analysis.Tokenizer. Byte offsets are best effort:
// TokenizeMath rewrites LaTeX commands, so a token that cannot be located
// in the raw input keeps the running offset.
func (t *bleveMathTokenizer) Tokenize(input []byte) analysis.TokenStream {
	raw := string(input)
	lower := strings.ToLower(raw)
	toks := TokenizeMath(raw)

	stream := make(analysis.TokenStream, 0, len(toks))
	cursor := 0
	for i, term := range toks {
		from := strings.Index(lower[cursor:], strings.ToLower(term))
		if from < 0 {
			from = cursor
		} else {
			from += cursor
		}
		to := from + len(term)

		stream = append(stream, &analysis.Token{
			Term:     []byte(term),
			Start:    from,
			End:      to,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if to <= len(raw) {
			cursor = to
		}
	}
	return stream
}

func mathStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveMathStopFilter{
		stopSet: StopWordSet(DefaultMathStopWords),
	}, nil
}

// bleveMathStopFilter drops math stop words from the token stream.
type bleveMathStopFilter struct {
	stopSet map[string]struct{}
}

func (f *bleveMathStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	kept := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := f.stopSet[strings.ToLower(string(tok.Term))]; stop {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}
