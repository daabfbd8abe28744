package logger

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// debugSampler thins out high-volume debug events. A nil gate lets every event through.
type debugSampler struct {
	mu   sync.RWMutex
	gate *rate.Sometimes
}

func (s *debugSampler) set(gate *rate.Sometimes) {
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
}

func (s *debugSampler) Allow() bool {
	s.mu.RLock()
	gate := s.gate
	s.mu.RUnlock()
	if gate == nil {
		return true
	}
	allowed := false
	gate.Do(func() { allowed = true })
	return allowed
}

// parseSampleSpec accepts "1/N" or "N" (one event in N), a duration such as
// "5s" (at most one event per interval), and "0" or "off" (no sampling).
// ok is false for malformed input.
func parseSampleSpec(spec string) (gate *rate.Sometimes, ok bool) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch spec {
	case "0", "off", "all":
		return nil, true
	}
	if d, err := time.ParseDuration(spec); err == nil && d > 0 {
		return &rate.Sometimes{Interval: d}, true
	}
	num, den := 1, 0
	if a, b, found := strings.Cut(spec, "/"); found {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil || n <= 0 {
			return nil, false
		}
		num, den = n, d
	} else if v, err := strconv.Atoi(spec); err == nil {
		den = v
	}
	if den <= 0 {
		return nil, false
	}
	every := den / num
	if every <= 1 {
		return nil, true
	}
	return &rate.Sometimes{Every: every}, true
}
