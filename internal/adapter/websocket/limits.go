package websocket

import (
	"sync"
	"sync/atomic"
)

// globalLimiter caps concurrent connections for the whole process.
type globalLimiter struct {
	current atomic.Int64
	max     int64
}

func newGlobalLimiter(max int64) *globalLimiter {
	return &globalLimiter{max: max}
}

func (l *globalLimiter) acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *globalLimiter) release() {
	l.current.Add(-1)
}

func (l *globalLimiter) count() int64 {
	return l.current.Load()
}

// ipLimiter caps concurrent connections per client IP.
type ipLimiter struct {
	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func newIPLimiter(maxPer int) *ipLimiter {
	return &ipLimiter{ips: make(map[string]int), maxPer: maxPer}
}

func (l *ipLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ips[ip] >= l.maxPer {
		return false
	}
	l.ips[ip]++
	return true
}

func (l *ipLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
}

func (l *ipLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

// LimitReason describes why an upgrade was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
)

// connectionLimits combines the process-wide and per-IP caps. A zero or
// negative cap disables that check.
type connectionLimits struct {
	global *globalLimiter
	perIP  *ipLimiter
}

func newConnectionLimits(globalMax int64, perIPMax int) *connectionLimits {
	l := &connectionLimits{}
	if globalMax > 0 {
		l.global = newGlobalLimiter(globalMax)
	}
	if perIPMax > 0 {
		l.perIP = newIPLimiter(perIPMax)
	}
	return l
}

func (l *connectionLimits) acquire(ip string) (LimitReason, bool) {
	if l.global != nil && !l.global.acquire() {
		return LimitReasonGlobal, false
	}
	if l.perIP != nil && !l.perIP.acquire(ip) {
		if l.global != nil {
			l.global.release()
		}
		return LimitReasonPerIP, false
	}
	return "", true
}

func (l *connectionLimits) release(ip string) {
	if l.perIP != nil {
		l.perIP.release(ip)
	}
	if l.global != nil {
		l.global.release()
	}
}
