package nbt

import (
	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
)

// Response is the status-checked result of one Command Set operation.
type Response struct {
	Command string
	Data    []byte
	Status  iso7816.StatusWord
	Trace   iso7816.Trace
}

func newResponse(name string, trace iso7816.Trace) *Response {
	return &Response{
		Command: name,
		Data:    trace.Data(),
		Status:  trace.Status(),
		Trace:   trace,
	}
}

// IsSuccess reports whether the tag accepted the command.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// CheckOK returns the response itself when successful, or a ProtocolError.
func (r *Response) CheckOK() (*Response, error) {
	if !r.IsSuccess() {
		return nil, &ProtocolError{Command: r.Command, Status: r.Status}
	}
	return r, nil
}
