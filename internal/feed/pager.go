// Package feed pages through the public explore feed, newest first.
package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("feed")

// PageSize is the number of posts requested per page.
const PageSize = 10

// Post is one public feed entry.
type Post struct {
	ID         string
	UserID     string
	Title      string
	Slug       string
	Content    string
	Type       string
	Visibility string
	CreatedAt  time.Time
}

// Source serves one 1-based page of public posts, newest first. kind filters
// by post type when not empty.
type Source interface {
	ListPosts(ctx context.Context, page, size int, kind string) ([]Post, error)
}

// Pager accumulates pages from a Source as the reader scrolls.
type Pager struct {
	src  Source
	kind string

	mu      sync.Mutex
	page    int
	hasMore bool
	loading bool
	posts   []Post
	seen    map[string]bool
}

// NewPager returns a pager positioned before the first page.
func NewPager(src Source, kind string) *Pager {
	return &Pager{src: src, kind: kind, hasMore: true, seen: make(map[string]bool)}
}

// Next fetches the following page and appends the posts not already held.
// It returns the newly added posts. Calls while a fetch is running or after
// the last page are no-ops. On error the pager stays where it was.
func (p *Pager) Next(ctx context.Context) ([]Post, error) {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return nil, nil
	}
	p.loading = true
	page := p.page + 1
	p.mu.Unlock()

	posts, err := p.src.ListPosts(ctx, page, PageSize, p.kind)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false
	if err != nil {
		log.Warningf("feed page %d: %v", page, err)
		return nil, fmt.Errorf("load page %d: %w", page, err)
	}

	p.page = page
	// a short page is the last one
	p.hasMore = len(posts) == PageSize

	var added []Post
	for _, post := range posts {
		if p.seen[post.ID] {
			continue
		}
		p.seen[post.ID] = true
		added = append(added, post)
	}
	p.posts = append(p.posts, added...)
	return added, nil
}

// Reset forgets every page so the next call to Next loads page 1 again.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.page = 0
	p.hasMore = true
	p.posts = nil
	p.seen = make(map[string]bool)
}

// Posts returns everything loaded so far.
func (p *Pager) Posts() []Post {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Post(nil), p.posts...)
}

// HasMore reports whether another page may exist.
func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

// Page returns the number of pages loaded.
func (p *Pager) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}
