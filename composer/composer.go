// Package composer drives the creation of a new post and its optional photo.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/api/validator"
	"github.com/mercedmeals/feedclient/session"
)

// An API creates posts and attaches photos to them.
type API interface {
	CreatePost(ctx context.Context, token string, p api.NewPost) (api.CreatePostResponse, error)
	UploadPhoto(ctx context.Context, token string, u api.PhotoUpload) error
}

// An IdentityResolver returns the user the post is created for.
type IdentityResolver interface {
	Resolve(ctx context.Context) (session.Identity, error)
}

// State is the submission state of a Composer.
type State int

const (
	Idle State = iota
	Submitting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "idle"
}

var (
	// ErrIdentifierExtraction is returned when the post was created but the
	// response carries no usable identifier.
	ErrIdentifierExtraction = errors.New("could not extract post id from response")
	// ErrNotAuthenticated is returned when there is no identity to post as.
	ErrNotAuthenticated = errors.New("user not authenticated")
	// ErrSubmitting is returned while a submission is in flight.
	ErrSubmitting = errors.New("submission in progress")
	// ErrClosed is returned when the composer is not open.
	ErrClosed = errors.New("composer is not open")
)

// An AttachmentError is returned when the post was created but its photo
// could not be uploaded. The post is not rolled back.
type AttachmentError struct {
	PostID api.ID
	Status int
	Body   string
	Err    error
}

func (e *AttachmentError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("photo upload failed: %v", e.Err)
	}
	return fmt.Sprintf("photo upload failed. status: %d, response: %s", e.Status, e.Body)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// A File is a photo picked by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// PendingPost is the working set of an open composer.
type PendingPost struct {
	Title   string `validate:"required"`
	Caption string `validate:"required"`
	File    *File
}

// Composer creates a post, then uploads its photo if one was picked. The two
// requests are strictly sequential. On success the working set is dropped,
// the composer closes and OnPostCreated is called; on failure everything the
// user entered is kept for a retry.
type Composer struct {
	API      API
	Identity IdentityResolver
	Val      *validator.Validator
	Logger   *slog.Logger
	// Now stamps renamed files. Defaults to time.Now.
	Now func() time.Time
	// OnPostCreated is called after a fully successful submission.
	OnPostCreated func(ctx context.Context, id api.ID)

	mu      sync.Mutex
	open    bool
	state   State
	pending PendingPost
	err     error
}

// Open starts a fresh composition. Opening an open composer does nothing.
func (c *Composer) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return
	}
	c.open = true
	c.state = Idle
	c.pending = PendingPost{}
	c.err = nil
}

// Close discards the working set. A composer cannot be closed while a
// submission is in flight.
func (c *Composer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Submitting {
		return ErrSubmitting
	}
	c.open = false
	c.state = Idle
	c.pending = PendingPost{}
	c.err = nil
	return nil
}

func (c *Composer) SetTitle(title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrClosed
	}
	c.pending.Title = title
	return nil
}

func (c *Composer) SetCaption(caption string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrClosed
	}
	c.pending.Caption = caption
	return nil
}

// SelectFile sets the photo to upload and returns the name it will be
// uploaded under. Every pick after the first in one composition is renamed so
// it cannot collide with the previous one.
func (c *Composer) SelectFile(f File) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return "", ErrClosed
	}
	if prev := c.pending.File; prev != nil {
		f.Name = uniqueName(f.Name, prev.Name, c.now())
	}
	c.pending.File = &f
	return f.Name, nil
}

func (c *Composer) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// CanSubmit reports whether the submit action is enabled.
func (c *Composer) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && c.state != Submitting && c.pending.Title != "" && c.pending.Caption != ""
}

func (c *Composer) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error of the last failed submission.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Pending returns a copy of the working set.
func (c *Composer) Pending() PendingPost {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Submit creates the post and uploads its photo. The returned id is set
// whenever the post was created, including when the photo upload failed.
func (c *Composer) Submit(ctx context.Context) (api.ID, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.state == Submitting {
		c.mu.Unlock()
		return "", ErrSubmitting
	}
	if err := c.Val.Err(c.pending); err != nil {
		c.mu.Unlock()
		return "", err
	}
	pending := c.pending
	c.state = Submitting
	c.err = nil
	c.mu.Unlock()

	id, err := c.submit(ctx, pending)

	c.mu.Lock()
	if err != nil {
		c.state = Failed
		c.err = err
		c.mu.Unlock()
		c.Logger.Error("Could not submit post", "post_id", id, "error", err.Error())
		return id, err
	}
	c.state = Succeeded
	c.open = false
	c.pending = PendingPost{}
	onCreated := c.OnPostCreated
	c.mu.Unlock()

	if onCreated != nil {
		onCreated(ctx, id)
	}
	return id, nil
}

func (c *Composer) submit(ctx context.Context, p PendingPost) (api.ID, error) {
	ident, err := c.Identity.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	res, err := c.API.CreatePost(ctx, ident.Token, api.NewPost{
		Title:   p.Title,
		Content: p.Caption,
		UserID:  ident.UserID,
	})
	if err != nil {
		return "", err
	}
	id, ok := res.Identifier()
	if !ok {
		return "", ErrIdentifierExtraction
	}
	c.Logger.Info("Created post", "post_id", id, "user_id", ident.UserID)

	if p.File == nil {
		return id, nil
	}

	err = c.API.UploadPhoto(ctx, ident.Token, api.PhotoUpload{
		Photo: api.Photo{
			Filename:    p.File.Name,
			ContentType: p.File.ContentType,
			Data:        p.File.Data,
		},
		PostID: id,
		UserID: ident.UserID,
	})
	if err != nil {
		ae := &AttachmentError{PostID: id, Err: err}
		var se *api.StatusError
		if errors.As(err, &se) {
			ae.Status = se.Status
			ae.Body = se.Body
		}
		return id, ae
	}
	c.Logger.Info("Uploaded photo", "post_id", id, "filename", p.File.Name)
	return id, nil
}
