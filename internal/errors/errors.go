package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrNotAuthenticated is returned when the caller holds no valid upstream credential
	ErrNotAuthenticated = errors.New("not authenticated with upstream source")

	// ErrExhausted signals that a pipeline stage has no more items to return
	ErrExhausted = errors.New("pipeline stage exhausted")

	// ErrIndexingUnavailable is returned when the LSH engine cannot allocate a matrix
	ErrIndexingUnavailable = errors.New("indexing unavailable")

	// ErrMatrixNotFound is returned when an LSH matrix cannot be located
	ErrMatrixNotFound = errors.New("matrix not found")

	// ErrRecordNotFound is returned when a tracking record is not found
	ErrRecordNotFound = errors.New("tracking record not found")

	// ErrAlreadyIndexing is returned when a record is already claimed by an indexing job
	ErrAlreadyIndexing = errors.New("record is already being indexed")

	// ErrQueueFull is returned when the job queue cannot accept more work
	ErrQueueFull = errors.New("job queue is full")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// RecordNotFoundError represents a tracking record lookup failure with context
type RecordNotFoundError struct {
	RecordID string
	UserID   string
}

func (e *RecordNotFoundError) Error() string {
	if e.UserID != "" {
		return fmt.Sprintf("no tracking record found for user '%s'", e.UserID)
	}
	return fmt.Sprintf("tracking record '%s' not found", e.RecordID)
}

func (e *RecordNotFoundError) Is(target error) bool {
	return target == ErrRecordNotFound
}

// NewRecordNotFoundError creates a new RecordNotFoundError for a record ID
func NewRecordNotFoundError(recordID string) *RecordNotFoundError {
	return &RecordNotFoundError{RecordID: recordID}
}

// NewUserRecordNotFoundError creates a new RecordNotFoundError for a user lookup
func NewUserRecordNotFoundError(userID string) *RecordNotFoundError {
	return &RecordNotFoundError{UserID: userID}
}

// MatrixNotFoundError represents a missing LSH matrix
type MatrixNotFoundError struct {
	MatrixID string
}

func (e *MatrixNotFoundError) Error() string {
	if e.MatrixID == "" {
		return "matrix not assigned"
	}
	return fmt.Sprintf("matrix '%s' not found", e.MatrixID)
}

func (e *MatrixNotFoundError) Is(target error) bool {
	return target == ErrMatrixNotFound
}

// NewMatrixNotFoundError creates a new MatrixNotFoundError
func NewMatrixNotFoundError(matrixID string) *MatrixNotFoundError {
	return &MatrixNotFoundError{MatrixID: matrixID}
}

// IndexingUnavailableError wraps the reason a matrix could not be created
type IndexingUnavailableError struct {
	Reason string
	Err    error
}

func (e *IndexingUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("indexing unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("indexing unavailable: %s", e.Reason)
}

func (e *IndexingUnavailableError) Is(target error) bool {
	return target == ErrIndexingUnavailable
}

func (e *IndexingUnavailableError) Unwrap() error {
	return e.Err
}

// NewIndexingUnavailableError creates a new IndexingUnavailableError
func NewIndexingUnavailableError(reason string, err error) *IndexingUnavailableError {
	return &IndexingUnavailableError{Reason: reason, Err: err}
}

// AlreadyIndexingError represents a rejected claim on a record
type AlreadyIndexingError struct {
	RecordID string
}

func (e *AlreadyIndexingError) Error() string {
	return fmt.Sprintf("tracking record '%s' is already being indexed", e.RecordID)
}

func (e *AlreadyIndexingError) Is(target error) bool {
	return target == ErrAlreadyIndexing
}

// NewAlreadyIndexingError creates a new AlreadyIndexingError
func NewAlreadyIndexingError(recordID string) *AlreadyIndexingError {
	return &AlreadyIndexingError{RecordID: recordID}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
