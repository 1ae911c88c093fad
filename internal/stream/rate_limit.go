package stream

import (
	"errors"
	"sync"
)

var (
	errPerClientLimit = errors.New("too many concurrent streams for this client")
	errTotalLimit     = errors.New("server stream capacity reached")
)

// streamLimiter caps concurrent position streams per client address and overall.
type streamLimiter struct {
	mu       sync.Mutex
	byClient map[string]int
	total    int
	perIP    int
	max      int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP < 1 {
		maxPerIP = 10
	}
	if maxTotal < 1 {
		maxTotal = 1000
	}
	return &streamLimiter{
		byClient: make(map[string]int),
		perIP:    maxPerIP,
		max:      maxTotal,
	}
}

// acquire takes a slot for ip, or reports which cap stopped it.
func (l *streamLimiter) acquire(ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.total >= l.max:
		return errTotalLimit
	case l.byClient[ip] >= l.perIP:
		return errPerClientLimit
	}
	l.byClient[ip]++
	l.total++
	return nil
}

func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byClient[ip] == 0 {
		return
	}
	l.total--
	if l.byClient[ip]--; l.byClient[ip] == 0 {
		delete(l.byClient, ip)
	}
}

// usage returns the streams held by ip and by everyone.
func (l *streamLimiter) usage(ip string) (client, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byClient[ip], l.total
}
