package catalog

import (
	"context"
	"fmt"
)

// Kind classifies a related URL attached to a metadata record.
type Kind string

const (
	// KindData marks the primary payload asset of a record.
	KindData Kind = "data"
	// KindDocumentation marks user guides, READMEs and similar.
	KindDocumentation Kind = "documentation"
	// KindBrowse marks preview imagery.
	KindBrowse Kind = "browse"
)

// IsData reports whether the URL points at primary data rather than an
// ancillary asset.
func (k Kind) IsData() bool { return k == KindData }

// RelatedURL is one downloadable asset reference on a record.
type RelatedURL struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

// Record is a single catalog metadata record, either a collection or a
// granule. The related URL order is meaningful: task indices are
// assigned in this order.
type Record struct {
	ConceptID   string       `json:"concept_id"`
	Title       string       `json:"title,omitempty"`
	RelatedURLs []RelatedURL `json:"related_urls"`
}

// TaskID builds a human-readable identifier for the n-th related URL
// of the record.
func (r Record) TaskID(n int) string {
	if r.Title != "" {
		return fmt.Sprintf("%s:%s:%d", r.ConceptID, r.Title, n)
	}
	return fmt.Sprintf("%s:%d", r.ConceptID, n)
}

// Result holds one full catalog search: all collection records
// followed by all granule records, each in catalog order.
type Result struct {
	Collections []Record `json:"collections"`
	Granules    []Record `json:"granules"`
}

// Searcher runs catalog queries. The paginated query protocol lives
// outside this system; implementations are expected to return fully
// drained result sets.
type Searcher interface {
	SearchCollections(ctx context.Context, query map[string]string) ([]Record, error)
	SearchGranules(ctx context.Context, query map[string]string) ([]Record, error)
}
