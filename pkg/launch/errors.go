package launch

import (
	"fmt"
	"strings"
)

// EndpointError is the final failure of a single endpoint.
type EndpointError struct {
	Index int
	Name  string
	Err   error
}

func (e *EndpointError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e *EndpointError) Unwrap() error { return e.Err }

// AggregateError bundles every endpoint failure of a concurrent phase,
// ordered by endpoint insertion index.
type AggregateError struct {
	Errors []*EndpointError
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ee := range e.Errors {
		msgs = append(msgs, ee.Error())
	}
	return fmt.Sprintf("%d endpoint(s) failed: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	out := make([]error, 0, len(e.Errors))
	for _, ee := range e.Errors {
		out = append(out, ee)
	}
	return out
}

// First returns the underlying error of the lowest-index failed endpoint.
func (e *AggregateError) First() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0].Err
}

func collectErrors(endpoints []*ServiceEndpoint, outcomes []error) *AggregateError {
	var errs []*EndpointError
	for i, err := range outcomes {
		if err == nil {
			continue
		}
		errs = append(errs, &EndpointError{Index: i, Name: endpoints[i].Name(), Err: err})
	}
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}
