package pipeline

// Reporter is informed of every mutation outcome so the surrounding
// application can surface toasts or status lines. The core never decides
// user-facing messaging itself; it reports and moves on.
type Reporter interface {
	Success(op, message string)
	Failure(op string, err error)
}

// NopReporter discards all outcomes.
type NopReporter struct{}

func (NopReporter) Success(op, message string) {}
func (NopReporter) Failure(op string, err error) {}
