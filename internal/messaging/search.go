package messaging

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Search defaults.
const (
	DefaultSearchDelay = 300 * time.Millisecond
	DefaultSearchLimit = 10
)

// Search runs partner lookups a fixed delay after the last keystroke. Only
// the newest query's results are kept.
type Search struct {
	ctx    context.Context
	dir    Directory
	selfID string
	delay  time.Duration
	done   func([]Profile, error)

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	query   string
	results []Profile
	stopped bool
}

// NewSearch returns a debounced search for selfID. done, if set, is called
// from a timer goroutine whenever results change or a lookup fails.
func NewSearch(ctx context.Context, dir Directory, selfID string, delay time.Duration, done func([]Profile, error)) *Search {
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	return &Search{ctx: ctx, dir: dir, selfID: selfID, delay: delay, done: done}
}

// Type records the current query text. A blank query clears the results
// at once without a lookup.
func (s *Search) Type(query string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.query = query
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	q := strings.TrimSpace(query)
	if q == "" {
		s.results = nil
		s.mu.Unlock()
		s.report(nil, nil)
		return
	}
	s.timer = time.AfterFunc(s.delay, func() { s.run(gen, q) })
	s.mu.Unlock()
}

// Clear is Type("").
func (s *Search) Clear() { s.Type("") }

// Query returns the text last passed to Type.
func (s *Search) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Results returns the latest results.
func (s *Search) Results() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Profile(nil), s.results...)
}

// Stop cancels a pending lookup. Later calls to Type are ignored.
func (s *Search) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Search) run(gen uint64, q string) {
	profiles, err := s.dir.SearchProfiles(s.ctx, q, s.selfID, DefaultSearchLimit)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		log.Debugf("dropping stale results for %q", q)
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.report(nil, remote("search profiles", err))
		return
	}
	results := profiles[:0:0]
	for _, p := range profiles {
		if p.ID != s.selfID {
			results = append(results, p)
		}
	}
	s.results = results
	s.mu.Unlock()
	s.report(results, nil)
}

func (s *Search) report(results []Profile, err error) {
	if s.done != nil {
		s.done(results, err)
	}
}
