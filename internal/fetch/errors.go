package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failed fetch
type Kind string

const (
	// KindTransient covers timeouts, connection failures and retryable statuses
	KindTransient Kind = "transient"
	// KindPermanent covers responses that retrying is unlikely to fix
	KindPermanent Kind = "permanent"
)

// retryableStatusCodes are HTTP statuses treated as transient
var retryableStatusCodes = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// Error is a classified fetch failure
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch failure for %s: HTTP %d %s", e.Kind, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s fetch failure for %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}


// KindOf returns the classification of err, defaulting to transient for
// unclassified errors
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// classifyStatus maps a non-2xx status to a Kind
func classifyStatus(code int) Kind {
	if retryableStatusCodes[code] || code >= 500 {
		return KindTransient
	}
	return KindPermanent
}

// classifyTransport maps a transport-level error to a Kind
func classifyTransport(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return KindPermanent
		}
		return KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	// Connection resets, EOFs mid-body and the like
	return KindTransient
}
