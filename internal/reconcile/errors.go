package reconcile

import (
	"errors"
	"fmt"
)

// Fatal conditions. Anything else raised while fetching a page or saving a
// record is transient: it is logged, counted and the run continues.
var (
	// ErrFailureBudgetExceeded aborts a catalog walk after too many
	// consecutive page failures. Partial results are discarded.
	ErrFailureBudgetExceeded = errors.New("page failure budget exceeded")

	// ErrCatalogUnreachable, ErrLedgerUnreachable and ErrStoreUnreachable
	// mean a collaborator could not be reached at all.
	ErrCatalogUnreachable = errors.New("catalog unreachable")
	ErrLedgerUnreachable  = errors.New("ledger unreachable")
	ErrStoreUnreachable   = errors.New("snapshot store unreachable")

	// ErrRunAborted is returned when a collision resolver chose to abort.
	ErrRunAborted = errors.New("run aborted by operator decision")

	// ErrRunInProgress rejects a second run on an engine that is busy.
	ErrRunInProgress = errors.New("a reconciliation run is already in progress")
)

// PageError describes one transient page failure.
type PageError struct {
	Listing string // "products" or "products/{id}/variations"
	Page    int
	Status  int // HTTP status, 0 for transport or decode errors
	Err     error
}

func (e *PageError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s page %d: status %d: %v", e.Listing, e.Page, e.Status, e.Err)
	}
	return fmt.Sprintf("%s page %d: %v", e.Listing, e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err must abort the current run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFailureBudgetExceeded) ||
		errors.Is(err, ErrCatalogUnreachable) ||
		errors.Is(err, ErrLedgerUnreachable) ||
		errors.Is(err, ErrStoreUnreachable) ||
		errors.Is(err, ErrRunAborted)
}
