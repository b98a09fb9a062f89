package contact

import "sync"

// maxOtherErrorDetails caps the deduplicated detail list so a pathological
// file cannot grow the result without bound.
const maxOtherErrorDetails = 100

// Result holds the outcome counters of one import run.
// Invariant at completion: TotalRecords == SuccessfulImports + FailedImports.
type Result struct {
	TotalRecords                     int      `json:"totalRecords"`
	SuccessfulImports                int      `json:"successfulImports"`
	FailedImports                    int      `json:"failedImports"`
	DuplicatePhoneNumbers            int      `json:"duplicatePhoneNumbers"`
	FailedDueToMissingClientNumber   int      `json:"failedDueToMissingClientNumber"`
	FailedDueToDuplicateClientNumber int      `json:"failedDueToDuplicateClientNumber"`
	FailedDueToInvalidPhone          int      `json:"failedDueToInvalidPhone"`
	FailedDueToInvalidEmail          int      `json:"failedDueToInvalidEmail"`
	FailedDueToDuplicateEmail        int      `json:"failedDueToDuplicateEmail"`
	FailedDueToOtherErrors           int      `json:"failedDueToOtherErrors"`
	OtherErrorsDetails               []string `json:"otherErrorsDetails"`
}

// Aggregator accumulates Result counters. All methods are safe to call from
// concurrently running batch commits.
type Aggregator struct {
	mu     sync.Mutex
	result Result
	seen   map[string]struct{}
}

func NewAggregator() *Aggregator {
	return &Aggregator{seen: make(map[string]struct{})}
}

// CountRow registers one input row, valid or not.
func (a *Aggregator) CountRow() {
	a.mu.Lock()
	a.result.TotalRecords++
	a.mu.Unlock()
}

// AddSuccess records n successfully persisted records in one step, so a
// whole batch lands atomically in the counters.
func (a *Aggregator) AddSuccess(n int) {
	a.mu.Lock()
	a.result.SuccessfulImports += n
	a.mu.Unlock()
}

// AddRejection records one failed record classified by reason. The detail
// message is kept only for ReasonOther and deduplicated.
func (a *Aggregator) AddRejection(reason RejectReason, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.result.FailedImports++

	switch reason {
	case ReasonMissingClientNumber:
		a.result.FailedDueToMissingClientNumber++
	case ReasonDuplicateClientNumber:
		a.result.FailedDueToDuplicateClientNumber++
	case ReasonDuplicatePhone:
		a.result.DuplicatePhoneNumbers++
	case ReasonDuplicateEmail:
		a.result.FailedDueToDuplicateEmail++
	case ReasonInvalidPhone:
		a.result.FailedDueToInvalidPhone++
	case ReasonInvalidEmail:
		a.result.FailedDueToInvalidEmail++
	default:
		a.result.FailedDueToOtherErrors++
		if detail != "" {
			if _, dup := a.seen[detail]; !dup && len(a.result.OtherErrorsDetails) < maxOtherErrorDetails {
				a.seen[detail] = struct{}{}
				a.result.OtherErrorsDetails = append(a.result.OtherErrorsDetails, detail)
			}
		}
	}
}

// Snapshot returns a copy of the counters accumulated so far.
func (a *Aggregator) Snapshot() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.result
	r.OtherErrorsDetails = append([]string(nil), a.result.OtherErrorsDetails...)
	return r
}
