// Package cert loads the TLS server key pair from disk and keeps the
// last good pair serving while watching both files for changes.
package cert

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/sujalthakur-03/CyberSentinel-SyslogServer/internal/logging"
)

// Source holds one certificate/key pair. Safe for concurrent use;
// reloads apply to connections accepted after the swap.
type Source struct {
	logger   *slog.Logger
	certFile string
	keyFile  string

	cert     atomic.Pointer[tls.Certificate]
	watcher  *fsnotify.Watcher
	stop     chan struct{}
	stopOnce sync.Once
}

// NewSource loads the pair and starts watching both files. A pair that
// does not load is an error; the caller decides what that disables.
// A watcher that cannot start downgrades to a static certificate.
func NewSource(certFile, keyFile string, logger *slog.Logger) (*Source, error) {
	s := &Source{
		logger:   logging.Default(logger).With("component", "cert"),
		certFile: certFile,
		keyFile:  keyFile,
		stop:     make(chan struct{}),
	}

	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	s.cert.Store(&pair)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify start failed, certificate reload disabled", "error", err)
		return s, nil
	}
	s.watcher = watcher
	for _, path := range []string{certFile, keyFile} {
		if err := watcher.Add(path); err != nil {
			s.logger.Warn("watch file", "file", path, "error", err)
		}
	}
	go s.watch()

	return s, nil
}

func (s *Source) watch() {
	defer s.watcher.Close()
	for {
		select {
		case <-s.stop:
			return
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.reload()
		}
	}
}

// reload swaps in the pair currently on disk. A pair that does not
// load leaves the previous one serving.
func (s *Source) reload() {
	pair, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		s.logger.Warn("certificate reload failed, keeping previous", "error", err)
		return
	}
	s.cert.Store(&pair)
	s.logger.Info("certificate reloaded", "cert", s.certFile)
}

// GetCertificate returns the current pair. Fits
// tls.Config.GetCertificate so handshakes always see the latest swap.
func (s *Source) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return s.cert.Load(), nil
}

// TLSConfig returns a server config backed by this source.
func (s *Source) TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: s.GetCertificate,
	}
}

// Close stops watching. The last loaded pair keeps serving.
func (s *Source) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}
