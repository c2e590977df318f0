package handlers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle enforces a server-wide download bandwidth cap shared fairly
// across unique client IPs.
//
// Each unique IP receives an equal share of the total cap regardless of how
// many concurrent streams that IP has open, so a download manager opening
// several parallel connections cannot claim more than one share. When an
// IP's last active transfer finishes its share is released and the remaining
// IPs each receive a larger slice; rebalancing is synchronous on every
// connect/disconnect event.
type Throttle struct {
	mu       sync.Mutex
	limitBps float64            // total cap in bytes/sec (0 = unlimited)
	peers    map[string]*ipState // keyed by remote IP
}

type ipState struct {
	limiter *rate.Limiter
	refs    int // number of active transfers from this IP
}

// NewThrottle creates a throttle with the given total cap in bytes per
// second. Pass 0 to disable rate limiting entirely.
func NewThrottle(bytesPerSec float64) *Throttle {
	return &Throttle{
		limitBps: bytesPerSec,
		peers:    make(map[string]*ipState),
	}
}

// join registers a new transfer for the given IP and returns its limiter.
// It rebalances every existing IP's share to account for the new participant.
func (t *Throttle) join(ip, file string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, exists := t.peers[ip]
	if !exists {
		// New IP. The placeholder rate is replaced by the rebalance below.
		st = &ipState{limiter: rate.NewLimiter(1, chunkSize)}
		t.peers[ip] = st
	}
	st.refs++

	log.Printf("serve start     ip=%-15s  streams=%-2d  file=%s", ip, st.refs, file)
	t.rebalanceLocked()
	return st.limiter
}

// leave decrements the transfer count for ip, removes the entry when it
// reaches zero, then rebalances the remaining peers.
func (t *Throttle) leave(ip, file string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.peers[ip]
	if !ok {
		return
	}
	st.refs--
	log.Printf("serve end       ip=%-15s  streams=%-2d  file=%s", ip, st.refs, file)
	if st.refs <= 0 {
		delete(t.peers, ip)
	}
	t.rebalanceLocked()
}

// rebalanceLocked recalculates the per-IP byte rate and applies it to every
// active limiter. Must be called with t.mu held.
func (t *Throttle) rebalanceLocked() {
	n := len(t.peers)
	if n == 0 || t.limitBps == 0 {
		return
	}
	perIP := t.limitBps / float64(n)
	lim := rate.Limit(perIP)
	for ip, st := range t.peers {
		st.limiter.SetLimit(lim)
		// Burst = one chunk so the limiter is always responsive but never
		// allows more than ~one write-buffer worth of free data.
		st.limiter.SetBurst(chunkSize)
		log.Printf("rate rebalance  ip=%-15s  peers=%-2d  alloc=%s", ip, n, formatBits(perIP))
	}
}

// formatBits formats a bytes-per-second value as a human-readable
// bits-per-second string, matching the unit convention users configure with.
func formatBits(bytesPerSec float64) string {
	bps := bytesPerSec * 8
	switch {
	case bps >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gbps", bps/1_000_000_000)
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", bps/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.2f Kbps", bps/1_000)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}

// Wrap returns an http.Handler that applies bandwidth limiting to h's
// responses. When no cap is set (0), h is returned unchanged with zero
// overhead.
func (t *Throttle) Wrap(h http.Handler) http.Handler {
	if t.limitBps == 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		file := r.URL.Path
		limiter := t.join(ip, file)
		defer t.leave(ip, file)

		h.ServeHTTP(&limitedResponseWriter{
			ResponseWriter: w,
			ctx:            r.Context(),
			limiter:        limiter,
		}, r)
	})
}

// chunkSize is the maximum number of bytes written in a single pass through
// the rate limiter. Smaller values give smoother, more accurate limiting;
// 32 KiB is a good balance between accuracy and syscall overhead.
const chunkSize = 32 * 1024

// limitedResponseWriter wraps http.ResponseWriter and throttles Write calls
// through a token-bucket rate limiter.
type limitedResponseWriter struct {
	http.ResponseWriter
	ctx     context.Context
	limiter *rate.Limiter
}

func (lw *limitedResponseWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		// Check if the client has gone away.
		select {
		case <-lw.ctx.Done():
			return total, lw.ctx.Err()
		default:
		}

		n := len(p)
		if n > chunkSize {
			n = chunkSize
		}

		// Block until the limiter grants tokens for this chunk.
		if err := lw.limiter.WaitN(lw.ctx, n); err != nil {
			return total, err
		}

		written, err := lw.ResponseWriter.Write(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

// ReadFrom is implemented so that io.Copy (used internally by
// http.ServeContent and zip.Writer) routes through our Write method rather
// than bypassing it via the faster WriteTo/ReadFrom path.
func (lw *limitedResponseWriter) ReadFrom(src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		select {
		case <-lw.ctx.Done():
			return total, lw.ctx.Err()
		default:
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := lw.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

// Unwrap lets http.ResponseController reach the underlying ResponseWriter.
func (lw *limitedResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}
