package semantic

import "errors"

var (
	// ErrInvalidInput is returned when document text is empty,
	// whitespace-only, or contains no indexable terms. Such a document
	// would poison vocabulary fitting, so it is rejected up front.
	ErrInvalidInput = errors.New("document text has no indexable content")

	// ErrStateInconsistency signals that the document id list and the
	// vector model's row count have diverged. This is an internal
	// invariant violation and must never happen in correct operation.
	ErrStateInconsistency = errors.New("document id list and vector rows are out of sync")

	// ErrDuplicateID is returned when rehydration supplies a document id
	// that is already present in the index.
	ErrDuplicateID = errors.New("duplicate document id")
)
