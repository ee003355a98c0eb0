package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind buckets upstream completion failures for logs and metrics.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindAuth        Kind = "auth"
	KindRateLimited Kind = "rate_limited"
	KindMalformed   Kind = "malformed"
	KindUpstream    Kind = "upstream"
	KindCanceled    Kind = "canceled"
)

// ErrMalformedResponse marks a reply that could not be decoded into text.
var ErrMalformedResponse = errors.New("malformed completion response")

// StatusError is a non-2xx HTTP answer from a completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.Code)
	}
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

// KindForHTTPStatus maps an HTTP status code onto a failure kind.
func KindForHTTPStatus(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindNetwork
	default:
		return KindUpstream
	}
}

// Classify inspects err and returns its failure kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	if errors.Is(err, ErrMalformedResponse) {
		return KindMalformed
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return KindForHTTPStatus(statusErr.Code)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}
	return KindUpstream
}
