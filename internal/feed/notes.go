package feed

import "time"

// MaxDepth is the deepest reply level a thread shows; replies below it are
// counted in Hidden instead.
const MaxDepth = 4

// Note is a comment on a post.
type Note struct {
	ID        string
	PostID    string
	UserID    string
	ParentID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edited reports whether the note was changed after it was posted.
func (n Note) Edited() bool { return n.UpdatedAt.After(n.CreatedAt) }

// Thread is a note with the replies under it.
type Thread struct {
	Note    Note
	Depth   int
	Replies []*Thread
	Hidden  int
}

// Threads arranges notes, given oldest first, into reply trees. Top-level
// notes and notes whose parent is missing become roots. Order is kept at
// every level.
func Threads(notes []Note) []*Thread {
	present := make(map[string]bool, len(notes))
	children := make(map[string][]Note)
	for _, n := range notes {
		present[n.ID] = true
	}
	var roots []Note
	for _, n := range notes {
		if n.ParentID == "" || !present[n.ParentID] {
			roots = append(roots, n)
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n)
	}

	var build func(n Note, depth int) *Thread
	build = func(n Note, depth int) *Thread {
		t := &Thread{Note: n, Depth: depth}
		if depth >= MaxDepth {
			t.Hidden = count(children, n.ID)
			return t
		}
		for _, c := range children[n.ID] {
			t.Replies = append(t.Replies, build(c, depth+1))
		}
		return t
	}

	out := make([]*Thread, 0, len(roots))
	for _, n := range roots {
		out = append(out, build(n, 0))
	}
	return out
}

func count(children map[string][]Note, id string) int {
	n := 0
	for _, c := range children[id] {
		n += 1 + count(children, c.ID)
	}
	return n
}
