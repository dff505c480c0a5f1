// Package feed loads the post collection and the data displayed around it.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mercedmeals/feedclient/api"
)

// An API is the read side of the backend.
type API interface {
	ListPosts(ctx context.Context) ([]api.Post, error)
	GetUser(ctx context.Context, id api.ID) (api.User, error)
	ListTags(ctx context.Context) ([]api.Tag, error)
}

// DefaultConcurrency bounds the author fan-out when Repository.Concurrency is
// not set.
const DefaultConcurrency = 8

// Repository fetches read-only snapshots of the feed.
type Repository struct {
	API    API
	Logger *slog.Logger
	// EnrichAuthors fetches each post's author profile after the post list.
	EnrichAuthors bool
	// Concurrency bounds the number of author requests in flight.
	Concurrency int
}

// LoadFeed fetches the posts and, when enrichment is on, each post's author.
// Only the post list request can fail the call; an author that cannot be
// fetched becomes api.UnknownUser on that post alone.
func (r *Repository) LoadFeed(ctx context.Context) ([]api.Post, error) {
	posts, err := r.API.ListPosts(ctx)
	if err != nil {
		r.Logger.Error("Could not list posts", "error", err.Error())
		return nil, fmt.Errorf("load feed: %w", err)
	}
	r.Logger.Info("Got posts", "count", len(posts))

	if !r.EnrichAuthors || len(posts) == 0 {
		return posts, nil
	}

	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return Gather(ctx, limit, posts, r.withAuthor), nil
}

func (r *Repository) withAuthor(ctx context.Context, p api.Post) api.Post {
	if p.AuthorID == "" {
		r.Logger.Warn("Post has no author", "post_id", p.ID)
		p.Author = unknownUser()
		return p
	}
	u, err := r.API.GetUser(ctx, p.AuthorID)
	if err != nil {
		r.Logger.Error("Could not fetch author", "post_id", p.ID, "user_id", p.AuthorID, "error", err.Error())
		p.Author = unknownUser()
		return p
	}
	p.Author = &u
	return p
}

func unknownUser() *api.User {
	u := api.UnknownUser
	return &u
}

// LoadProfile fetches a user profile. Failures are logged and yield nil.
func (r *Repository) LoadProfile(ctx context.Context, userID api.ID) *api.User {
	u, err := r.API.GetUser(ctx, userID)
	if err != nil {
		r.Logger.Error("Could not fetch profile", "user_id", userID, "error", err.Error())
		return nil
	}
	return &u
}

// LoadTags fetches all tags. Failures are logged and yield an empty list.
func (r *Repository) LoadTags(ctx context.Context) []api.Tag {
	tags, err := r.API.ListTags(ctx)
	if err != nil {
		r.Logger.Error("Could not list tags", "error", err.Error())
		return []api.Tag{}
	}
	return tags
}
