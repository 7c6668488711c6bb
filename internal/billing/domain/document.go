package billing

import "fmt"

// CompositeDocument is the merged document for one (source, category) pair.
type CompositeDocument struct {
	SourceKey   string
	Category    Category
	Filename    string
	Content     []byte
	Placeholder bool
	Records     []Record
}

// Filename builds {SOURCEKEY}-{CategoryName}-{period}.pdf.
func Filename(sourceKey string, category Category, period Period) string {
	return fmt.Sprintf("%s-%s-%s.pdf", sourceKey, category.String(), period.Label)
}

// DestinationGroup batches composites sent to one address.
type DestinationGroup struct {
	Destination string
	Documents   []CompositeDocument
}

// SourceKeys returns the distinct source keys in document order.
func (g DestinationGroup) SourceKeys() []string {
	seen := make(map[string]struct{}, len(g.Documents))
	var keys []string
	for _, doc := range g.Documents {
		if _, ok := seen[doc.SourceKey]; ok {
			continue
		}
		seen[doc.SourceKey] = struct{}{}
		keys = append(keys, doc.SourceKey)
	}
	return keys
}
