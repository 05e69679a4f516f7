package boundary

import "errors"

// Result is the outcome of one Gateway call: a value of the expected shape,
// a *RemoteFault, or a *TransportError. Never persist it.
type Result struct {
	Op    Operation
	Value Value
	Err   error
}

// OK reports whether the call produced a usable value
func (r Result) OK() bool {
	return r.Err == nil
}

// Fault returns the remote fault, if that is the outcome
func (r Result) Fault() (*RemoteFault, bool) {
	var fault *RemoteFault
	if errors.As(r.Err, &fault) {
		return fault, true
	}
	return nil, false
}

// Transport returns the transport error, if that is the outcome
func (r Result) Transport() (*TransportError, bool) {
	var terr *TransportError
	if errors.As(r.Err, &terr) {
		return terr, true
	}
	return nil, false
}
