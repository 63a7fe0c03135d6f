package domain

import "errors"

// ValidationError reports malformed input from the caller. It is never
// retried: the request layer surfaces it as a client error.
type ValidationError struct {
	Field string // Input field that failed validation
	Err   error  // Underlying error
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError wraps err as a validation failure of the named field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation checks whether an error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DependencyError reports a failed call to an external collaborator: the
// wallet, an oracle, a store or the message relay.
type DependencyError struct {
	Dep string // Collaborator name (e.g. "order-store")
	Op  string // Operation that failed (e.g. "insert")
	Err error  // Underlying error
}

func (e *DependencyError) Error() string {
	return e.Dep + " " + e.Op + ": " + e.Err.Error()
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// NewDependencyError wraps err as a failure of op against dep.
func NewDependencyError(dep, op string, err error) *DependencyError {
	return &DependencyError{Dep: dep, Op: op, Err: err}
}

// IsDependency checks whether an error is a DependencyError.
func IsDependency(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

var (
	// ErrRecipientKey is returned when the recipient's public key cannot be
	// resolved from the chain. The recipient's address must have at least one
	// outgoing transaction for its key to be discoverable.
	ErrRecipientKey = errors.New("recipient public key unresolvable")

	// ErrEncryption is returned when the message or key passed to the
	// encryption step is malformed.
	ErrEncryption = errors.New("encryption rejected input")

	// ErrSignalBuild is returned when the on-chain signal transaction cannot
	// be constructed, usually because the funding credential holds
	// insufficient funds.
	ErrSignalBuild = errors.New("could not build signal transaction")
)
