package feed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeSource serves posts[] newest first, the way the row store does.
type fakeSource struct {
	posts []Post
	pages []int
	err   error
	// shift inserts this many new posts at the head before each page after
	// the first, so offsets move under the reader.
	shift int
}

func (f *fakeSource) ListPosts(ctx context.Context, page, size int, kind string) ([]Post, error) {
	f.pages = append(f.pages, page)
	if f.err != nil {
		return nil, f.err
	}
	if page > 1 {
		for i := 0; i < f.shift; i++ {
			id := fmt.Sprintf("new%d-%d", page, i)
			f.posts = append([]Post{{ID: id, Type: "blog"}}, f.posts...)
		}
	}
	var match []Post
	for _, p := range f.posts {
		if kind == "" || p.Type == kind {
			match = append(match, p)
		}
	}
	lo, hi := (page-1)*size, page*size
	if lo >= len(match) {
		return nil, nil
	}
	if hi > len(match) {
		hi = len(match)
	}
	return match[lo:hi], nil
}

func makePosts(n int) []Post {
	out := make([]Post, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		kind := "blog"
		if i%2 == 1 {
			kind = "work"
		}
		out[i] = Post{ID: fmt.Sprintf("p%02d", i), Type: kind, CreatedAt: base.Add(-time.Duration(i) * time.Hour)}
	}
	return out
}

func TestPager_LoadsUntilShortPage(t *testing.T) {
	src := &fakeSource{posts: makePosts(23)}
	p := NewPager(src, "")
	ctx := context.Background()

	for p.HasMore() {
		if _, err := p.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	if got := len(p.Posts()); got != 23 {
		t.Fatalf("expected 23 posts, got %d", got)
	}
	if p.Page() != 3 {
		t.Fatalf("expected 3 pages, got %d", p.Page())
	}
	if p.Posts()[0].ID != "p00" || p.Posts()[22].ID != "p22" {
		t.Fatalf("posts out of order")
	}

	// after the last page Next does nothing
	added, err := p.Next(ctx)
	if err != nil || added != nil || len(src.pages) != 3 {
		t.Fatalf("expected no further fetch, pages=%v", src.pages)
	}
}

func TestPager_ExactMultipleNeedsEmptyPage(t *testing.T) {
	src := &fakeSource{posts: makePosts(20)}
	p := NewPager(src, "")
	ctx := context.Background()

	for p.HasMore() {
		if _, err := p.Next(ctx); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(src.pages) != 3 || len(p.Posts()) != 20 {
		t.Fatalf("expected an empty third page to end the feed, pages=%v posts=%d", src.pages, len(p.Posts()))
	}
}

func TestPager_SuppressesDuplicatesAcrossPages(t *testing.T) {
	src := &fakeSource{posts: makePosts(25), shift: 3}
	p := NewPager(src, "")
	ctx := context.Background()

	if _, err := p.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	// three new posts push p07..p09 onto page 2
	added, err := p.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(added) != 7 {
		t.Fatalf("expected 7 new posts on page 2, got %d", len(added))
	}

	seen := make(map[string]bool)
	for _, post := range p.Posts() {
		if seen[post.ID] {
			t.Fatalf("duplicate post %s", post.ID)
		}
		seen[post.ID] = true
	}
}

func TestPager_FilterByType(t *testing.T) {
	src := &fakeSource{posts: makePosts(30)}
	p := NewPager(src, "work")

	if _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, post := range p.Posts() {
		if post.Type != "work" {
			t.Fatalf("unexpected type %q", post.Type)
		}
	}
}

func TestPager_ErrorKeepsPosition(t *testing.T) {
	src := &fakeSource{posts: makePosts(15)}
	p := NewPager(src, "")
	ctx := context.Background()

	if _, err := p.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	src.err = errors.New("network")
	if _, err := p.Next(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if p.Page() != 1 || !p.HasMore() || len(p.Posts()) != 10 {
		t.Fatalf("failed fetch moved the pager: page=%d more=%v posts=%d", p.Page(), p.HasMore(), len(p.Posts()))
	}

	src.err = nil
	if _, err := p.Next(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if src.pages[len(src.pages)-1] != 2 {
		t.Fatalf("retry should ask for page 2 again, asked %v", src.pages)
	}
}

func TestPager_Reset(t *testing.T) {
	src := &fakeSource{posts: makePosts(5)}
	p := NewPager(src, "")
	ctx := context.Background()
	_, _ = p.Next(ctx)
	if p.HasMore() {
		t.Fatalf("short first page should end the feed")
	}

	p.Reset()
	if !p.HasMore() || len(p.Posts()) != 0 {
		t.Fatalf("Reset did not clear state")
	}
	if _, err := p.Next(ctx); err != nil || len(p.Posts()) != 5 {
		t.Fatalf("reload after reset failed: %v", err)
	}
	if src.pages[len(src.pages)-1] != 1 {
		t.Fatalf("Reset should restart from page 1")
	}
}
