package relay

import (
	"errors"
	"fmt"
)

// Kind classifies relay failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingParameter
	KindUpstreamUnreachable
	KindRedirectLocationMissing
	KindTooManyRedirects
	KindInterstitialUnresolvable
	KindStreamingInterrupted
)

func (k Kind) String() string {
	switch k {
	case KindMissingParameter:
		return "missing_parameter"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindRedirectLocationMissing:
		return "redirect_location_missing"
	case KindTooManyRedirects:
		return "too_many_redirects"
	case KindInterstitialUnresolvable:
		return "interstitial_unresolvable"
	case KindStreamingInterrupted:
		return "streaming_interrupted"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every relay stage.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("relay %s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("relay %s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("relay: %s: %v", e.Kind, e.Err)
	default:
		return "relay: " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of Op or the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrMissingParameter         = &Error{Kind: KindMissingParameter}
	ErrUpstreamUnreachable      = &Error{Kind: KindUpstreamUnreachable}
	ErrRedirectLocationMissing  = &Error{Kind: KindRedirectLocationMissing}
	ErrTooManyRedirects         = &Error{Kind: KindTooManyRedirects}
	ErrInterstitialUnresolvable = &Error{Kind: KindInterstitialUnresolvable}
	ErrStreamingInterrupted     = &Error{Kind: KindStreamingInterrupted}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return relayErr.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
