// Package intent routes a query to the cheapest sufficient data-gathering path.
package intent

import "strings"

// Kind is the data-gathering scope a query needs.
type Kind string

const (
	// List needs only bucket names and can be answered directly.
	List Kind = "list"
	// Specific needs reports for the buckets named in the query.
	Specific Kind = "specific"
	// Aggregate needs reports for every bucket.
	Aggregate Kind = "aggregate"
	// General needs bucket names only; details are deferred.
	General Kind = "general"
)

// Intent is the classification of one query.
type Intent struct {
	Kind    Kind
	Buckets []string // buckets named in the query, in listing order
}

var (
	aggregateKeywords = []string{"all buckets", "total", "compare", "largest", "smallest", "most", "least"}
	listKeywords      = []string{"list", "show", "what buckets"}
)

// Classify matches query against keyword rules. The first matching rule wins:
// aggregate keywords, then bucket names present verbatim, then list keywords.
func Classify(query string, knownBuckets []string) Intent {
	q := strings.ToLower(query)

	var mentioned []string
	for _, b := range knownBuckets {
		if b != "" && strings.Contains(q, strings.ToLower(b)) {
			mentioned = append(mentioned, b)
		}
	}

	switch {
	case containsAny(q, aggregateKeywords):
		return Intent{Kind: Aggregate, Buckets: mentioned}
	case len(mentioned) > 0:
		return Intent{Kind: Specific, Buckets: mentioned}
	case containsAny(q, listKeywords):
		return Intent{Kind: List}
	default:
		return Intent{Kind: General}
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
