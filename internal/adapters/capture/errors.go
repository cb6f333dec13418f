package capture

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"http-inspector/internal/domain"
)

// ErrorFrom classifies a transport error into the network error domain.
func ErrorFrom(err error) domain.Error {
	out := domain.Error{Code: domain.CodeUnknown, Message: err.Error(), Domain: domain.DomainNetwork}
	var (
		dnsErr  *net.DNSError
		opErr   *net.OpError
		netErr  net.Error
		urlErr  *url.Error
		certErr *tls.CertificateVerificationError
		authErr x509.UnknownAuthorityError
		hostErr x509.HostnameError
	)
	switch {
	case errors.Is(err, context.Canceled):
		out.Code = domain.CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		out.Code = domain.CodeTimedOut
	case errors.As(err, &dnsErr):
		out.Code = domain.CodeCannotFindHost
	case errors.As(err, &certErr), errors.As(err, &authErr), errors.As(err, &hostErr):
		out.Code = domain.CodeSecureConnection
	case errors.As(err, &netErr) && netErr.Timeout():
		out.Code = domain.CodeTimedOut
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		out.Code = domain.CodeCannotConnect
	case errors.As(err, &opErr) && opErr.Op == "dial":
		out.Code = domain.CodeCannotConnect
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		out.Code = domain.CodeConnectionLost
	case errors.As(err, &urlErr) && strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme"):
		out.Code = domain.CodeBadURL
	}
	return out
}

// ErrorFromText classifies a Chromium net error string such as
// "net::ERR_NAME_NOT_RESOLVED".
func ErrorFromText(text string, canceled bool) domain.Error {
	out := domain.Error{Code: domain.CodeUnknown, Message: text, Domain: domain.DomainNetwork}
	t := strings.ToUpper(text)
	switch {
	case canceled || strings.Contains(t, "ERR_ABORTED"):
		out.Code = domain.CodeCancelled
		if out.Message == "" {
			out.Message = "cancelled"
		}
	case strings.Contains(t, "ERR_NAME_NOT_RESOLVED"):
		out.Code = domain.CodeCannotFindHost
	case strings.Contains(t, "ERR_INTERNET_DISCONNECTED"):
		out.Code = domain.CodeNotConnected
	case strings.Contains(t, "TIMED_OUT"):
		out.Code = domain.CodeTimedOut
	case strings.Contains(t, "ERR_CONNECTION_REFUSED"), strings.Contains(t, "ERR_ADDRESS_UNREACHABLE"):
		out.Code = domain.CodeCannotConnect
	case strings.Contains(t, "ERR_CONNECTION_RESET"), strings.Contains(t, "ERR_CONNECTION_CLOSED"), strings.Contains(t, "ERR_EMPTY_RESPONSE"):
		out.Code = domain.CodeConnectionLost
	case strings.Contains(t, "ERR_CERT_"), strings.Contains(t, "ERR_SSL_"):
		out.Code = domain.CodeSecureConnection
	}
	return out
}
