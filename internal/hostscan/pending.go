package hostscan

import (
	"net"
	"sync"
	"time"
)

// pendingEntry is one in-flight probe: the receiver fulfils replyC with the
// measured RTT once a matching echo reply arrives (§4.5 step 4).
type pendingEntry struct {
	sentAt time.Time
	replyC chan time.Duration
}

// pendingTable is the per-family map of in-flight probes, keyed by
// destination IP rather than id/seq (§4.5 correctness notes: demux is by
// source IP only, so a target has at most one live entry — a fresh insert
// replaces any stale one for the same target).
type pendingTable struct {
	mu sync.Mutex
	m  map[string]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{m: make(map[string]*pendingEntry)}
}

func (p *pendingTable) insert(ip net.IP, sentAt time.Time) *pendingEntry {
	e := &pendingEntry{sentAt: sentAt, replyC: make(chan time.Duration, 1)}
	p.mu.Lock()
	p.m[ip.String()] = e
	p.mu.Unlock()
	return e
}

func (p *pendingTable) remove(ip net.IP) {
	p.mu.Lock()
	delete(p.m, ip.String())
	p.mu.Unlock()
}

// fulfil delivers recvAt to the pending entry for ip, if any, and removes
// it. A second reply for the same IP (or a reply after the worker gave up
// and removed its entry) finds nothing and is silently discarded.
func (p *pendingTable) fulfil(ip net.IP, recvAt time.Time) bool {
	p.mu.Lock()
	e, ok := p.m[ip.String()]
	if ok {
		delete(p.m, ip.String())
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case e.replyC <- recvAt.Sub(e.sentAt):
	default:
	}
	return true
}
