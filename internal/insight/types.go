package insight

import "errors"

// ErrExtraction indicates the extraction service response could not be
// validated into the three-key schema. Callers decide whether to retry,
// prompt the user, or drop the entry; the record is never persisted.
var ErrExtraction = errors.New("extraction response invalid")

// Record is the validated structured output of journal-text analysis.
// All three fields are always non-nil, possibly empty.
type Record struct {
	Emotions   []string `json:"emotions"`
	Activities []string `json:"activities"`
	Comments   []string `json:"comments"`
}
