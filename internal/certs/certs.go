// Package certs keeps a self-signed TLS certificate for serving the API
// over HTTPS on a local network.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Validity is how long a generated certificate lasts.
const Validity = 365 * 24 * time.Hour

// renewBefore regenerates certificates this close to expiry.
const renewBefore = 7 * 24 * time.Hour

// FileManager stores the certificate and key as PEM files in a directory.
type FileManager struct {
	now      func() time.Time
	certDir  string
	certFile string
	keyFile  string
}

// NewFileManager creates a manager for certDir.
func NewFileManager(certDir string) *FileManager {
	return &FileManager{
		now:      time.Now,
		certDir:  certDir,
		certFile: filepath.Join(certDir, "cashbook.crt"),
		keyFile:  filepath.Join(certDir, "cashbook.key"),
	}
}

// CertFile returns the path of the PEM certificate, for importing into a
// browser or phone trust store.
func (m *FileManager) CertFile() string {
	return m.certFile
}

// GetOrCreateCertificate returns the stored certificate when it is
// unexpired and covers localhost and every host in hosts; otherwise a new
// one is generated and stored. Hosts may be names or IP addresses.
func (m *FileManager) GetOrCreateCertificate(hosts ...string) (tls.Certificate, error) {
	exists, err := m.CertificateExists()
	if err != nil {
		return tls.Certificate{}, err
	}
	if exists {
		cert, err := tls.LoadX509KeyPair(m.certFile, m.keyFile)
		if err == nil && m.verifyCertificate(cert, hosts) == nil {
			return cert, nil
		}
		if err := m.removeCertificates(); err != nil {
			return tls.Certificate{}, err
		}
	}
	return m.generateCertificate(hosts)
}

// CertificateExists checks if both certificate and key files exist.
func (m *FileManager) CertificateExists() (bool, error) {
	for _, path := range []string{m.certFile, m.keyFile} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, fmt.Errorf("failed to check %s: %w", path, err)
		}
	}
	return true, nil
}

// subjectAltNames splits hosts into DNS names and IPs, always including
// the loopback names.
func subjectAltNames(hosts []string) ([]string, []net.IP) {
	names := []string{"localhost"}
	ips := []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	for _, host := range hosts {
		if host == "" || host == "localhost" {
			continue
		}
		if ip := net.ParseIP(host); ip != nil {
			if !ip.IsLoopback() {
				ips = append(ips, ip)
			}
			continue
		}
		names = append(names, host)
	}
	return names, ips
}

func (m *FileManager) generateCertificate(hosts []string) (tls.Certificate, error) {
	if err := os.MkdirAll(m.certDir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	names, ips := subjectAltNames(hosts)
	now := m.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"cashbook"}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              names,
		IPAddresses:           ips,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := writePEM(m.certFile, "CERTIFICATE", certDER); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(m.keyFile, "PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}

	return tls.LoadX509KeyPair(m.certFile, m.keyFile)
}

func writePEM(path, blockType string, der []byte) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	if err := pem.Encode(out, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// verifyCertificate checks the validity window and that every host is covered.
func (m *FileManager) verifyCertificate(cert tls.Certificate, hosts []string) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("no certificates found")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	now := m.now()
	if now.Before(x509Cert.NotBefore) {
		return fmt.Errorf("certificate not yet valid")
	}
	if now.Add(renewBefore).After(x509Cert.NotAfter) {
		return fmt.Errorf("certificate expires %s", x509Cert.NotAfter.Format(time.DateOnly))
	}

	for _, host := range append([]string{"localhost"}, hosts...) {
		if host == "" {
			continue
		}
		if err := x509Cert.VerifyHostname(host); err != nil {
			return fmt.Errorf("certificate not valid for %s: %w", host, err)
		}
	}
	return nil
}

func (m *FileManager) removeCertificates() error {
	for _, path := range []string{m.certFile, m.keyFile} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
