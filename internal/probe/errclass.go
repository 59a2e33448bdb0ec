package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Error types reported to the metrics sink for transport failures.
const (
	ErrTypeTimeout   = "TIMEOUT"
	ErrTypeDNS       = "DNS_ERROR"
	ErrTypeRefused   = "CONNECTION_REFUSED"
	ErrTypeReset     = "CONNECTION_RESET"
	ErrTypeTLS       = "TLS_ERROR"
	ErrTypeBadURL    = "INVALID_URL"
	ErrTypeNetwork   = "NETWORK_ERROR"
	ErrTypeCancelled = "CANCELLED"
)

// Classify maps a transport error onto a stable error type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var (
		netErr     net.Error
		dnsErr     *net.DNSError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		urlErr     *url.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrTypeCancelled
	case errors.As(err, &dnsErr):
		return ErrTypeDNS
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrTypeRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrTypeReset
	case errors.As(err, &certErr),
		errors.As(err, &unknownCA),
		errors.As(err, &hostErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr):
		return ErrTypeTLS
	case errors.As(err, &urlErr) && isBadURL(urlErr):
		return ErrTypeBadURL
	}
	return ErrTypeNetwork
}

func isBadURL(e *url.Error) bool {
	if e.Op == "parse" {
		return true
	}
	return e.Err != nil && strings.Contains(e.Err.Error(), "unsupported protocol scheme")
}
