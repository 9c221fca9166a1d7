package receiver

import (
	"context"
	"errors"
	"net"
)

// runUDP reads datagrams until ctx is cancelled. One datagram is one
// message; anything past MaxMessageSize is truncated by the read.
// Parsing is total, so a malformed datagram never affects the next.
func (r *Receiver) runUDP(ctx context.Context) error {
	conn := r.udp
	r.logger.Info("udp listener started", "addr", conn.LocalAddr().String())

	buf := make([]byte, r.cfg.MaxMessageSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_ = conn.SetReadDeadline(deadline())

		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			r.logger.Warn("udp read error", "error", err)
			r.metrics.Received("udp", 0, false)
			continue
		}
		if n == 0 {
			continue
		}

		r.handle(ctx, buf[:n], remote.IP.String(), "udp")
	}
}
