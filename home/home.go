// Package home is the controller of the feed page: it gates on the session,
// loads the feed, tags and profile, applies votes and refreshes after a post
// is created.
package home

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/composer"
	"github.com/mercedmeals/feedclient/session"
	"github.com/mercedmeals/feedclient/vote"
)

// A Feed loads the data shown on the page.
type Feed interface {
	LoadFeed(ctx context.Context) ([]api.Post, error)
	LoadProfile(ctx context.Context, userID api.ID) *api.User
	LoadTags(ctx context.Context) []api.Tag
}

// ErrUnknownPost is returned when voting on a post that is not in the feed.
var ErrUnknownPost = errors.New("post not in feed")

// Page owns the in-memory feed for one page view. Vote toggles are its only
// mutation after load.
type Page struct {
	Gate     composer.IdentityResolver
	Feed     Feed
	Votes    *vote.Engine
	Composer *composer.Composer
	Logger   *slog.Logger

	mu       sync.RWMutex
	identity session.Identity
	posts    []api.Post
	tags     []api.Tag
	profile  *api.User
}

// New returns a page whose composer refreshes the feed after every created
// post.
func New(gate composer.IdentityResolver, feed Feed, c *composer.Composer, logger *slog.Logger) *Page {
	p := &Page{
		Gate:     gate,
		Feed:     feed,
		Votes:    &vote.Engine{},
		Composer: c,
		Logger:   logger,
	}
	if c != nil {
		c.OnPostCreated = p.onPostCreated
	}
	return p
}

func (p *Page) onPostCreated(ctx context.Context, id api.ID) {
	p.Logger.Info("Post created, reloading feed", "post_id", id)
	if err := p.Reload(ctx); err != nil {
		p.Logger.Error("Could not reload feed", "error", err.Error())
	}
}

// Load resolves the identity, then loads feed, tags and profile in parallel.
// Without an identity it returns an error matching
// session.ErrUnauthenticated and fetches nothing; the caller shows the login
// surface. The other loads are best effort and never fail the page.
func (p *Page) Load(ctx context.Context) error {
	ident, err := p.Gate.Resolve(ctx)
	if err != nil {
		p.Logger.Warn("No valid session", "error", err.Error())
		if errors.Is(err, session.ErrUnauthenticated) {
			return err
		}
		return fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
	}

	var (
		g       errgroup.Group
		posts   []api.Post
		tags    []api.Tag
		profile *api.User
	)
	g.Go(func() error {
		var err error
		if posts, err = p.Feed.LoadFeed(ctx); err != nil {
			posts = []api.Post{}
		}
		return nil
	})
	g.Go(func() error {
		tags = p.Feed.LoadTags(ctx)
		return nil
	})
	g.Go(func() error {
		profile = p.Feed.LoadProfile(ctx, ident.UserID)
		return nil
	})
	_ = g.Wait()

	p.mu.Lock()
	p.identity = ident
	p.posts = posts
	p.tags = tags
	p.profile = profile
	p.Votes.Reset()
	p.mu.Unlock()
	return nil
}

// Reload fetches a fresh feed snapshot and drops all local vote toggles. On
// failure the current feed is kept.
func (p *Page) Reload(ctx context.Context) error {
	posts, err := p.Feed.LoadFeed(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.posts = posts
	p.Votes.Reset()
	p.mu.Unlock()
	return nil
}

// Upvote toggles the upvote of the post with the given id.
func (p *Page) Upvote(id api.ID) (api.Post, vote.State, error) {
	return p.apply(id, vote.Upvote)
}

// Downvote toggles the downvote of the post with the given id.
func (p *Page) Downvote(id api.ID) (api.Post, vote.State, error) {
	return p.apply(id, vote.Downvote)
}

func (p *Page) apply(id api.ID, in vote.Input) (api.Post, vote.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.posts {
		if p.posts[i].ID == id {
			st := p.Votes.Apply(&p.posts[i], in)
			return p.posts[i], st, nil
		}
	}
	return api.Post{}, vote.Neutral, fmt.Errorf("%w: %s", ErrUnknownPost, id)
}

// Posts returns a copy of the feed in display order.
func (p *Page) Posts() []api.Post {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]api.Post(nil), p.posts...)
}

func (p *Page) Tags() []api.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]api.Tag(nil), p.tags...)
}

// Profile returns the profile of the signed-in user, nil if it could not be
// loaded.
func (p *Page) Profile() *api.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile
}

func (p *Page) Identity() session.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity
}
