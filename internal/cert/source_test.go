package cert

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeKeyPair(t *testing.T, certPath, keyPath, cn string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}
}

func currentLeaf(t *testing.T, s *Source) []byte {
	t.Helper()
	c, err := s.GetCertificate(&tls.ClientHelloInfo{})
	if err != nil {
		t.Fatal(err)
	}
	if c == nil || len(c.Certificate) == 0 {
		t.Fatal("no certificate loaded")
	}
	return c.Certificate[0]
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	writeKeyPair(t, certPath, keyPath, "one")

	s, err := NewSource(certPath, keyPath, nil)
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}
	defer s.Close()

	currentLeaf(t, s)

	cfg := s.TLSConfig()
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("MinVersion = %x", cfg.MinVersion)
	}
	if cfg.GetCertificate == nil {
		t.Error("GetCertificate not wired")
	}
}

func TestNewSourceMissingFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewSource(filepath.Join(dir, "no.crt"), filepath.Join(dir, "no.key"), nil); err == nil {
		t.Fatal("missing key pair accepted")
	}
}

func TestSourceReload(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	writeKeyPair(t, certPath, keyPath, "one")

	s, err := NewSource(certPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	before := currentLeaf(t, s)

	writeKeyPair(t, certPath, keyPath, "two")

	deadline := time.After(3 * time.Second)
	for {
		if !bytes.Equal(currentLeaf(t, s), before) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("certificate was not reloaded")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSourceKeepsLastGood(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "server.crt")
	keyPath := filepath.Join(dir, "server.key")
	writeKeyPair(t, certPath, keyPath, "one")

	s, err := NewSource(certPath, keyPath, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	before := currentLeaf(t, s)

	if err := os.WriteFile(certPath, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Give the watcher a moment to see the write, then confirm the
	// old pair still serves.
	time.Sleep(300 * time.Millisecond)
	if !bytes.Equal(currentLeaf(t, s), before) {
		t.Fatal("broken pair replaced the serving certificate")
	}
}
