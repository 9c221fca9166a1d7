package receiver

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// maxFrameBuffer is the hard cap on bytes buffered between newlines on
// one stream connection. A peer that exceeds it is disconnected.
const maxFrameBuffer = 64 << 10

// tlsHandshakeTimeout bounds the handshake so a silent peer cannot
// hold a handler goroutine open.
const tlsHandshakeTimeout = 10 * time.Second

// runStream accepts connections until ctx is cancelled. ln is the
// listener to accept from; ctl is the underlying TCP listener that
// takes the accept deadline. For plain TCP they are the same value,
// for TLS ln wraps ctl.
func (r *Receiver) runStream(ctx context.Context, proto string, ln net.Listener, ctl *net.TCPListener) error {
	r.logger.Info("stream listener started", "protocol", proto, "addr", ctl.Addr().String())

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		default:
		}

		_ = ctl.SetDeadline(deadline())

		conn, err := ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			r.logger.Warn("accept error", "protocol", proto, "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			r.handleConn(ctx, conn, proto)
		}()
	}
}

// handleConn reads newline-delimited frames from one connection.
// Frames are trimmed of surrounding whitespace and empty frames are
// skipped. A connection that closes mid-frame discards the partial.
func (r *Receiver) handleConn(ctx context.Context, conn net.Conn, proto string) {
	r.metrics.ActiveConnections.WithLabelValues(proto).Inc()
	defer r.metrics.ActiveConnections.WithLabelValues(proto).Dec()

	if tc, ok := conn.(*tls.Conn); ok {
		hctx, cancel := context.WithTimeout(ctx, tlsHandshakeTimeout)
		err := tc.HandshakeContext(hctx)
		cancel()
		if err != nil {
			r.logger.Debug("tls handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}

	remote := remoteIP(conn)
	chunk := make([]byte, 4096)
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(deadline())

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var over bool
			buf, over = r.drainFrames(ctx, buf, remote, proto)
			if over {
				r.metrics.FramesDropped.WithLabelValues("oversize").Inc()
				r.logger.Warn("frame over limit, closing connection",
					"protocol", proto, "remote", remote, "buffered", len(buf))
				return
			}
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				r.logger.Debug("stream read error", "protocol", proto, "error", err)
				r.metrics.Received(proto, 0, false)
			}
			return
		}
	}
}

// drainFrames consumes every complete frame in buf and returns the
// remainder, plus whether the remainder already exceeds the frame cap.
func (r *Receiver) drainFrames(ctx context.Context, buf []byte, remote, proto string) ([]byte, bool) {
	for {
		nl := bytes.IndexByte(buf, '\n')
		if nl < 0 {
			return buf, len(buf) > maxFrameBuffer
		}

		frame := bytes.TrimSpace(buf[:nl])
		buf = buf[nl+1:]
		if len(frame) == 0 {
			continue
		}
		r.handle(ctx, frame, remote, proto)
	}
}

func remoteIP(conn net.Conn) string {
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
