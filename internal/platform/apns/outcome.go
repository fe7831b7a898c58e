package apns

import (
	"errors"
	"fmt"

	"github.com/sideshow/apns2"
)

var (
	// ErrNoDeviceTokens is returned by Send when called without devices.
	ErrNoDeviceTokens = errors.New("apns: no device tokens")
	// ErrMalformedResponse marks a rejection whose body is not a JSON error document.
	ErrMalformedResponse = errors.New("apns: malformed rejection body")
)

// ResponseParseError carries the raw body of a rejection that could not be decoded.
type ResponseParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("apns: status %d with unparseable body %q: %v", e.StatusCode, e.Body, e.Err)
}

func (e *ResponseParseError) Unwrap() []error {
	return []error{ErrMalformedResponse, e.Err}
}

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	Delivered OutcomeKind = iota
	Rejected
	TransportFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case Rejected:
		return "rejected"
	case TransportFailed:
		return "transport_failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the resolved result of one device request. Every request
// produces exactly one Outcome.
type Outcome struct {
	Device string
	Kind   OutcomeKind

	// Set for Rejected.
	StatusCode int
	ApnsID     string
	Body       []byte

	// Set for TransportFailed.
	Err error
}

// Failure describes a device that did not receive the notification. Either
// StatusCode is set (the gateway answered) or only Err is (the request never
// completed). A rejection with an unparseable body has both StatusCode and Err.
type Failure struct {
	Device     string
	StatusCode int
	Response   *apns2.Response
	Err        error
}

// Reason returns the gateway rejection reason, or "" for transport failures.
func (f Failure) Reason() string {
	if f.Response == nil {
		return ""
	}
	return f.Response.Reason
}

// SendResult partitions the devices of one Send call. Each device appears in
// exactly one of the two lists, in the order it was passed to Send.
type SendResult struct {
	Sent   []string
	Failed []Failure
}

func partition(outcomes []Outcome) *SendResult {
	res := &SendResult{
		Sent:   make([]string, 0, len(outcomes)),
		Failed: make([]Failure, 0),
	}
	for _, o := range outcomes {
		switch o.Kind {
		case Delivered:
			res.Sent = append(res.Sent, o.Device)
		case Rejected:
			res.Failed = append(res.Failed, rejection(o))
		default:
			res.Failed = append(res.Failed, Failure{Device: o.Device, Err: o.Err})
		}
	}
	return res
}

func rejection(o Outcome) Failure {
	f := Failure{Device: o.Device, StatusCode: o.StatusCode}
	resp, err := parseRejection(o.StatusCode, o.ApnsID, o.Body)
	if err != nil {
		f.Err = err
		return f
	}
	f.Response = resp
	return f
}
