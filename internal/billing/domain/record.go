package billing

// Status values that mark a record as primary.
const (
	StatusPaid = "paid"
	StatusOpen = "open"
)

// Category is the classification bucket of a record.
type Category int

const (
	CategoryPrimary Category = iota + 1
	CategoryOther
)

// Categories lists every category in processing order.
var Categories = []Category{CategoryPrimary, CategoryOther}

// String returns the display name used in filenames.
func (c Category) String() string {
	switch c {
	case CategoryPrimary:
		return "Paid"
	case CategoryOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// Classify maps a record status to its category.
func Classify(status string) Category {
	switch status {
	case StatusPaid, StatusOpen:
		return CategoryPrimary
	default:
		return CategoryOther
	}
}

// Record is one remote billing entry.
type Record struct {
	ID          string
	DocumentURL *string
	Number      string
	Status      string
	AmountPaid  int64
	AmountDue   int64
	Currency    string
	Created     int64
}

// Category returns the record's classification.
func (r Record) Category() Category {
	return Classify(r.Status)
}

// Label identifies the record in log lines.
func (r Record) Label() string {
	if r.Number != "" {
		return r.Number
	}
	return r.ID
}

// HasDocument reports whether the record carries a document reference.
func (r Record) HasDocument() bool {
	return r.DocumentURL != nil && *r.DocumentURL != ""
}
