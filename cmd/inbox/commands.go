package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PaulBabatuyi/convosync/internal/client"
	"github.com/PaulBabatuyi/convosync/internal/feed"
	"github.com/PaulBabatuyi/convosync/internal/messaging"
)

const timeFormat = "Jan 2 15:04"

// session is a signed-in controller plus the client under it.
type session struct {
	cl   *client.Client
	ctrl *messaging.Controller
}

func openSession(ctx context.Context, o messaging.Options) (*session, error) {
	cl, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	ctrl := messaging.NewController(cl, o)
	if err := ctrl.Init(ctx); err != nil {
		_ = cl.Close()
		return nil, err
	}
	if n := ctrl.Notice(); n != nil {
		log.Warningf("inbox loaded partially: %v", n)
	}
	return &session{cl: cl, ctrl: ctrl}, nil
}

func (s *session) close() {
	s.ctrl.Shutdown()
	_ = s.cl.Close()
}

// resolve finds the profile whose email matches exactly, falling back to the
// only search hit.
func (s *session) resolve(ctx context.Context, who string) (messaging.Profile, error) {
	self := s.ctrl.Self()
	ps, err := s.cl.SearchProfiles(ctx, who, self.ID, messaging.DefaultSearchLimit)
	if err != nil {
		return messaging.Profile{}, err
	}
	for _, p := range ps {
		if strings.EqualFold(p.Email, who) {
			return p, nil
		}
	}
	if len(ps) == 1 {
		return ps[0], nil
	}
	if len(ps) == 0 {
		return messaging.Profile{}, fmt.Errorf("no profile matches %q", who)
	}
	return messaging.Profile{}, fmt.Errorf("%q matches %d profiles; use an email", who, len(ps))
}

func printInbox(w io.Writer, c *messaging.Controller) {
	self := c.Self()
	fmt.Fprintf(w, "%s (%d unread)\n", self.DisplayName(), c.UnreadCount())
	for _, conv := range c.Conversations() {
		fmt.Fprintf(w, "  %-24s %s  %s\n", conv.Partner.DisplayName(), conv.Last.CreatedAt.Local().Format(timeFormat), conv.Preview(self.ID))
	}
}

func printThread(w io.Writer, c *messaging.Controller) {
	partner, msgs, ok := c.Thread()
	if !ok {
		return
	}
	self := c.Self()
	fmt.Fprintf(w, "-- %s --\n", partner.DisplayName())
	for _, m := range msgs {
		who := partner.DisplayName()
		if m.FromID == self.ID {
			who = "you"
		}
		body := m.Content
		if m.Attachment != "" {
			body = strings.TrimSpace(body + " [" + m.Attachment + "]")
		}
		fmt.Fprintf(w, "  [%s] %s %s: %s\n", m.ID, m.CreatedAt.Local().Format(timeFormat), who, body)
	}
}

type watchCmd struct {
	With string `short:"w" long:"with" description:"open the conversation with this email"`
}

func (cmd *watchCmd) Execute(_ []string) error {
	ctx := appCtx
	changed := make(chan struct{}, 1)
	s, err := openSession(ctx, messaging.Options{OnChange: func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}})
	if err != nil {
		return err
	}
	defer s.close()

	if cmd.With != "" {
		p, err := s.resolve(ctx, cmd.With)
		if err != nil {
			return err
		}
		if err := s.ctrl.Open(ctx, p); err != nil {
			return err
		}
	}

	render := func() {
		printInbox(os.Stdout, s.ctrl)
		printThread(os.Stdout, s.ctrl)
		if n := s.ctrl.Notice(); n != nil {
			fmt.Fprintf(os.Stdout, "! %v\n", n)
			s.ctrl.DismissNotice()
		}
	}
	render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			if s.ctrl.State() == messaging.StateUnauthenticated {
				return messaging.ErrAuthRequired
			}
			render()
		}
	}
}

type sendCmd struct {
	Attachment string `long:"attachment" description:"attachment URL"`
	Args       struct {
		To   string   `positional-arg-name:"email" required:"yes"`
		Text []string `positional-arg-name:"text"`
	} `positional-args:"yes"`
}

func (cmd *sendCmd) Execute(_ []string) error {
	ctx := appCtx
	s, err := openSession(ctx, messaging.Options{})
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.resolve(ctx, cmd.Args.To)
	if err != nil {
		return err
	}
	if err := s.ctrl.Open(ctx, p); err != nil {
		return err
	}
	if err := s.ctrl.Send(ctx, strings.Join(cmd.Args.Text, " "), cmd.Attachment); err != nil {
		return err
	}
	printThread(os.Stdout, s.ctrl)
	return nil
}

type deleteCmd struct {
	Yes  bool `short:"y" long:"yes" description:"do not ask for confirmation"`
	Args struct {
		With string `positional-arg-name:"email" required:"yes"`
		ID   string `positional-arg-name:"message-id" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *deleteCmd) Execute(_ []string) error {
	ctx := appCtx
	s, err := openSession(ctx, messaging.Options{Confirm: cmd.confirm})
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.resolve(ctx, cmd.Args.With)
	if err != nil {
		return err
	}
	if err := s.ctrl.Open(ctx, p); err != nil {
		return err
	}
	deleted, err := s.ctrl.Delete(ctx, cmd.Args.ID)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("not deleted")
		return nil
	}
	printThread(os.Stdout, s.ctrl)
	return nil
}

func (cmd *deleteCmd) confirm(m messaging.Message) bool {
	if cmd.Yes {
		return true
	}
	fmt.Printf("Delete %q? [y/N] ", m.Content)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

type searchCmd struct {
	Args struct {
		Query string `positional-arg-name:"query" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *searchCmd) Execute(_ []string) error {
	ctx := appCtx
	cl, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	self, err := cl.CurrentUser(ctx)
	if err != nil {
		return err
	}

	type result struct {
		ps  []messaging.Profile
		err error
	}
	out := make(chan result, 1)
	search := messaging.NewSearch(ctx, cl, self.ID, 0, func(ps []messaging.Profile, err error) {
		select {
		case out <- result{ps, err}:
		default:
		}
	})
	defer search.Stop()
	search.Type(cmd.Args.Query)

	select {
	case r := <-out:
		if r.err != nil {
			return r.err
		}
		if len(r.ps) == 0 {
			fmt.Println("no matches")
		}
		for _, p := range r.ps {
			fmt.Printf("%-24s %s\n", p.DisplayName(), p.Email)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type feedCmd struct {
	Type  string `short:"t" long:"type" description:"only posts of this type"`
	Pages int    `short:"n" long:"pages" default:"1" description:"pages to load; 0 loads everything"`
}

func (cmd *feedCmd) Execute(_ []string) error {
	ctx := appCtx
	cl, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	p := feed.NewPager(cl, cmd.Type)
	for p.HasMore() && (cmd.Pages == 0 || p.Page() < cmd.Pages) {
		added, err := p.Next(ctx)
		if err != nil {
			return err
		}
		for _, post := range added {
			fmt.Printf("%s  %-8s %s\n", post.CreatedAt.Local().Format(timeFormat), post.Type, post.Title)
		}
	}
	if p.HasMore() {
		fmt.Println("(more)")
	}
	return nil
}

func printThreads(w io.Writer, ts []*feed.Thread) {
	for _, t := range ts {
		indent := strings.Repeat("  ", t.Depth+1)
		edited := ""
		if t.Note.Edited() {
			edited = " (edited)"
		}
		fmt.Fprintf(w, "%s[%s] %s%s: %s\n", indent, t.Note.ID, t.Note.CreatedAt.Local().Format(timeFormat), edited, t.Note.Content)
		printThreads(w, t.Replies)
		if t.Hidden > 0 {
			fmt.Fprintf(w, "%s  (%d more replies)\n", indent, t.Hidden)
		}
	}
}

type readCmd struct {
	Args struct {
		Slug string `positional-arg-name:"slug" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *readCmd) Execute(_ []string) error {
	ctx := appCtx
	cl, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()
	return showPost(ctx, os.Stdout, cl, cmd.Args.Slug)
}

func showPost(ctx context.Context, w io.Writer, cl *client.Client, slug string) error {
	post, err := cl.GetPost(ctx, slug)
	if err != nil {
		return err
	}
	notes, err := cl.Notes(ctx, post.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n%s  %s\n\n%s\n\n", post.Title, post.CreatedAt.Local().Format(timeFormat), post.Type, post.Content)
	threads := feed.Threads(notes)
	fmt.Fprintf(w, "%d responses\n", len(threads))
	printThreads(w, threads)
	return nil
}

type commentCmd struct {
	ReplyTo string `short:"r" long:"reply-to" description:"reply to this note id"`
	Edit    string `long:"edit" description:"replace the text of this note id instead of adding one"`
	Delete  string `long:"delete" description:"delete this note id and its replies"`
	Args    struct {
		Slug string   `positional-arg-name:"slug" required:"yes"`
		Text []string `positional-arg-name:"text"`
	} `positional-args:"yes"`
}

func (cmd *commentCmd) Execute(_ []string) error {
	ctx := appCtx
	cl, err := connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	text := strings.Join(cmd.Args.Text, " ")
	switch {
	case cmd.Delete != "":
		n, err := cl.DeleteNote(ctx, cmd.Delete)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d notes\n", n)
		return nil
	case cmd.Edit != "":
		_, err = cl.EditNote(ctx, cmd.Edit, text)
	default:
		var post feed.Post
		post, err = cl.GetPost(ctx, cmd.Args.Slug)
		if err != nil {
			return err
		}
		_, err = cl.AddNote(ctx, post.ID, cmd.ReplyTo, text)
	}
	if err != nil {
		return err
	}
	return showPost(ctx, os.Stdout, cl, cmd.Args.Slug)
}
