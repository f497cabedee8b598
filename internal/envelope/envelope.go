// Package envelope normalizes vendor API responses into the shapes the portal
// hands to its callers: a uniform result wrapper, list payloads that are
// always lists, generic XML maps, and typed vendor errors.
package envelope

import "errors"

// Result is the {success, message, response} object every vendor call is
// surfaced as on the REST facade.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response any    `json:"response"`
}

// OK wraps a successful vendor response.
func OK(resp any) Result {
	return Result{Success: true, Message: "OK", Response: resp}
}

// Fail wraps a failed call. When err carries a *VendorError the vendor
// details are kept as the response so callers can read the vendor code.
func Fail(err error) Result {
	r := Result{Success: false, Message: err.Error()}
	var ve *VendorError
	if errors.As(err, &ve) {
		r.Response = ve
	}
	return r
}

// ErrInvalidInput marks a call rejected locally, before any request was sent.
var ErrInvalidInput = errors.New("invalid input")

// Invalid returns an error matching ErrInvalidInput with msg as its text.
func Invalid(msg string) error { return inputError(msg) }

type inputError string

func (e inputError) Error() string        { return string(e) }
func (e inputError) Is(target error) bool { return target == ErrInvalidInput }
