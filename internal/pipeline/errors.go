package pipeline

import "fmt"

// ValidationError rejects an operation before any local mutation or gateway
// call happens. No rollback is ever needed for one.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// GatewayError reports a remote failure after local state was rolled back.
// It carries enough context for user-facing notification: the operation, the
// lead's display name when known, and the intended stage transition for
// moves.
type GatewayError struct {
	Op   string
	ID   string
	Name string // display name, when locally known
	From string // intended transition, for moves
	To   string
	Err  error
}

func (e *GatewayError) Error() string {
	subject := e.Name
	if subject == "" {
		subject = "lead " + e.ID
	}
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("%s: failed to move %q from %q to %q: %v", e.Op, subject, e.From, e.To, e.Err)
	}
	return fmt.Sprintf("%s failed for %q: %v", e.Op, subject, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
