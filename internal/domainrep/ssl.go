package domainrep

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"time"
)

// checkSSL performs a TLS handshake on port 443. A verification failure is a
// completed check with valid=false, not an error; only connection failures
// (closed port, timeout) count as incomplete.
func checkSSL(ctx context.Context, domain string) (sslInfo, error) {
	conn, err := dialTLS(ctx, domain, false)
	if err == nil {
		defer conn.Close()
		return infoFromCerts(conn.ConnectionState().PeerCertificates, true), nil
	}
	if !isVerificationError(err) {
		return sslInfo{}, fmt.Errorf("tls dial: %w", err)
	}

	// Redial without verification to read the presented cert anyway.
	conn, err = dialTLS(ctx, domain, true)
	if err != nil {
		return sslInfo{valid: false}, nil
	}
	defer conn.Close()
	return infoFromCerts(conn.ConnectionState().PeerCertificates, false), nil
}

func dialTLS(ctx context.Context, domain string, insecure bool) (*tls.Conn, error) {
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	return tls.DialWithDialer(dialer, "tcp", domain+":443", &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: insecure,
	})
}

func isVerificationError(err error) bool {
	var (
		cve     *tls.CertificateVerificationError
		invalid x509.CertificateInvalidError
		host    x509.HostnameError
		unknown x509.UnknownAuthorityError
	)
	return errors.As(err, &cve) || errors.As(err, &invalid) ||
		errors.As(err, &host) || errors.As(err, &unknown)
}

func infoFromCerts(certs []*x509.Certificate, verified bool) sslInfo {
	info := sslInfo{valid: verified}
	if len(certs) == 0 {
		return info
	}
	leaf := certs[0]
	info.expiryDays = int(time.Until(leaf.NotAfter).Hours() / 24)
	info.selfSigned = leaf.Issuer.String() == leaf.Subject.String()
	if info.selfSigned {
		info.valid = false
	}
	return info
}
