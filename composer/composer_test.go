package composer

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/api/validator"
	"github.com/mercedmeals/feedclient/session"
)

type testapi struct {
	T           *testing.T
	createPost  func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error)
	uploadPhoto func(t *testing.T, token string, u api.PhotoUpload) error
	creates     int
	uploads     int
}

func (a *testapi) CreatePost(_ context.Context, token string, p api.NewPost) (api.CreatePostResponse, error) {
	a.creates++
	return a.createPost(a.T, token, p)
}

func (a *testapi) UploadPhoto(_ context.Context, token string, u api.PhotoUpload) error {
	a.uploads++
	return a.uploadPhoto(a.T, token, u)
}

type testidentity struct {
	id  session.Identity
	err error
}

func (i testidentity) Resolve(context.Context) (session.Identity, error) {
	return i.id, i.err
}

var ana = testidentity{id: session.Identity{UserID: "7", Token: "tok"}}

type reloads struct {
	ids []api.ID
}

func (r *reloads) onPostCreated(_ context.Context, id api.ID) {
	r.ids = append(r.ids, id)
}

func newComposer(t *testing.T, a *testapi, ident IdentityResolver, r *reloads) *Composer {
	t.Helper()
	a.T = t
	c := &Composer{
		API:           a,
		Identity:      ident,
		Val:           validator.New(),
		Logger:        slogt.New(t),
		Now:           func() time.Time { return time.UnixMilli(1700000000000) },
		OnPostCreated: r.onPostCreated,
	}
	c.Open()
	return c
}

func fill(t *testing.T, c *Composer, title, caption string) {
	t.Helper()
	if err := c.SetTitle(title); err != nil {
		t.Fatal(err)
	}
	if err := c.SetCaption(caption); err != nil {
		t.Fatal(err)
	}
}

func TestComposer_SubmitWithoutFile(t *testing.T) {
	a := &testapi{
		createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
			if token != "tok" {
				t.Errorf("Got token %q, want tok", token)
			}
			want := api.NewPost{Title: "Lunch", Content: "Great tacos", UserID: "7"}
			if diff := cmp.Diff(want, p); diff != "" {
				t.Errorf("CreatePost() body mismatch (-want +got):\n%s", diff)
			}
			return api.CreatePostResponse{ID: "1"}, nil
		},
	}
	r := &reloads{}
	c := newComposer(t, a, ana, r)
	fill(t, c, "Lunch", "Great tacos")

	if !c.CanSubmit() {
		t.Fatal("CanSubmit() = false with title and caption")
	}
	id, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}

	if id != "1" || a.creates != 1 || a.uploads != 0 {
		t.Errorf("Got id %q, %d creates, %d uploads, want 1, 1, 0", id, a.creates, a.uploads)
	}
	if c.State() != Succeeded || c.IsOpen() {
		t.Errorf("Got state %v open %v, want succeeded and closed", c.State(), c.IsOpen())
	}
	if diff := cmp.Diff(PendingPost{}, c.Pending()); diff != "" {
		t.Errorf("Pending() not cleared (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]api.ID{"1"}, r.ids); diff != "" {
		t.Errorf("Reload signals mismatch (-want +got):\n%s", diff)
	}
}

func TestComposer_AttachmentFailure(t *testing.T) {
	a := &testapi{
		createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
			return api.CreatePostResponse{PostID: "42"}, nil
		},
		uploadPhoto: func(t *testing.T, token string, u api.PhotoUpload) error {
			if u.PostID != "42" || u.UserID != "7" {
				t.Errorf("Got post %q user %q, want 42 and 7", u.PostID, u.UserID)
			}
			if u.Photo.Filename != "photo.png" || string(u.Photo.Data) != "PNG" {
				t.Errorf("Got photo %q %q", u.Photo.Filename, u.Photo.Data)
			}
			return &api.StatusError{Op: "upload photo", Status: 500, Body: "Error uploading photo"}
		},
	}
	r := &reloads{}
	c := newComposer(t, a, ana, r)
	fill(t, c, "Lunch", "Great tacos")
	if _, err := c.SelectFile(File{Name: "photo.png", ContentType: "image/png", Data: []byte("PNG")}); err != nil {
		t.Fatal(err)
	}

	id, err := c.Submit(context.Background())

	var ae *AttachmentError
	if !errors.As(err, &ae) {
		t.Fatalf("Submit() error = %v, want *AttachmentError", err)
	}
	if id != "42" || ae.PostID != "42" {
		t.Errorf("Got id %q / %q, want 42", id, ae.PostID)
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "Error uploading photo") {
		t.Errorf("Error %q lacks status or body", err)
	}
	if c.State() != Failed || !c.IsOpen() || c.Err() != err {
		t.Errorf("Got state %v open %v err %v, want failed, open, %v", c.State(), c.IsOpen(), c.Err(), err)
	}
	p := c.Pending()
	if p.Title != "Lunch" || p.Caption != "Great tacos" || p.File == nil {
		t.Errorf("Pending() = %+v, want entered data retained", p)
	}
	if a.creates != 1 || a.uploads != 1 || len(r.ids) != 0 {
		t.Errorf("Got %d creates, %d uploads, %d reloads, want 1, 1, 0", a.creates, a.uploads, len(r.ids))
	}
}

func TestComposer_SubmitErrors(t *testing.T) {
	created := func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
		return api.CreatePostResponse{ID: "1"}, nil
	}

	tests := []struct {
		name        string
		title       string
		caption     string
		ident       testidentity
		createPost  func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error)
		wantErr     error
		wantState   State
		wantCreates int
	}{
		{
			name:      "MissingCaption",
			title:     "Lunch",
			ident:     ana,
			wantState: Idle,
		},
		{
			name:      "NotAuthenticated",
			title:     "Lunch",
			caption:   "Great tacos",
			ident:     testidentity{err: session.ErrUnauthenticated},
			wantErr:   ErrNotAuthenticated,
			wantState: Failed,
		},
		{
			name:    "NoIdentifier",
			title:   "Lunch",
			caption: "Great tacos",
			ident:   ana,
			createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
				return api.CreatePostResponse{Message: "Post created successfully!"}, nil
			},
			wantErr:     ErrIdentifierExtraction,
			wantState:   Failed,
			wantCreates: 1,
		},
		{
			name:    "CreateRejected",
			title:   "Lunch",
			caption: "Great tacos",
			ident:   ana,
			createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
				return api.CreatePostResponse{}, api.ErrNetwork
			},
			wantErr:     api.ErrNetwork,
			wantState:   Failed,
			wantCreates: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.createPost == nil {
				tt.createPost = created
			}
			a := &testapi{createPost: tt.createPost}
			r := &reloads{}
			c := newComposer(t, a, tt.ident, r)
			fill(t, c, tt.title, tt.caption)

			_, err := c.Submit(context.Background())
			if err == nil {
				t.Fatal("Submit() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if c.State() != tt.wantState || !c.IsOpen() {
				t.Errorf("Got state %v open %v, want %v and open", c.State(), c.IsOpen(), tt.wantState)
			}
			if a.creates != tt.wantCreates || a.uploads != 0 || len(r.ids) != 0 {
				t.Errorf("Got %d creates, %d uploads, %d reloads", a.creates, a.uploads, len(r.ids))
			}
			if p := c.Pending(); p.Title != tt.title || p.Caption != tt.caption {
				t.Errorf("Pending() = %+v, want entered data retained", p)
			}
		})
	}
}

func TestComposer_RetryAfterFailure(t *testing.T) {
	fail := true
	a := &testapi{
		createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
			if fail {
				return api.CreatePostResponse{}, api.ErrNetwork
			}
			return api.CreatePostResponse{ID: "5"}, nil
		},
	}
	r := &reloads{}
	c := newComposer(t, a, ana, r)
	fill(t, c, "Lunch", "Great tacos")

	if _, err := c.Submit(context.Background()); err == nil {
		t.Fatal("first Submit() succeeded, want error")
	}
	fail = false
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit() error: %v", err)
	}
	if c.State() != Succeeded || c.Err() != nil || len(r.ids) != 1 {
		t.Errorf("Got state %v err %v reloads %d, want succeeded, nil, 1", c.State(), c.Err(), len(r.ids))
	}
}

func TestComposer_NoConcurrentSubmissions(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	a := &testapi{
		createPost: func(t *testing.T, token string, p api.NewPost) (api.CreatePostResponse, error) {
			close(entered)
			<-release
			return api.CreatePostResponse{ID: "1"}, nil
		},
	}
	r := &reloads{}
	c := newComposer(t, a, ana, r)
	fill(t, c, "Lunch", "Great tacos")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background())
		done <- err
	}()
	<-entered

	if c.State() != Submitting || c.CanSubmit() {
		t.Errorf("Got state %v CanSubmit %v while in flight", c.State(), c.CanSubmit())
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSubmitting) {
		t.Errorf("second Submit() = %v, want ErrSubmitting", err)
	}
	if err := c.Close(); !errors.Is(err, ErrSubmitting) {
		t.Errorf("Close() = %v, want ErrSubmitting", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if a.creates != 1 {
		t.Errorf("Got %d creates, want 1", a.creates)
	}
}

func TestComposer_SelectFile(t *testing.T) {
	c := newComposer(t, &testapi{}, ana, &reloads{})

	first, err := c.SelectFile(File{Name: "photo.png"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.SelectFile(File{Name: "photo.png"})
	if err != nil {
		t.Fatal(err)
	}
	third, err := c.SelectFile(File{Name: "photo.png"})
	if err != nil {
		t.Fatal(err)
	}

	if first != "photo.png" {
		t.Errorf("first selection renamed to %q", first)
	}
	if !regexp.MustCompile(`^photo_\d+\.png$`).MatchString(second) {
		t.Errorf("second selection %q does not match photo_<timestamp>.png", second)
	}
	if second == first || third == second {
		t.Errorf("Got colliding names %q, %q, %q", first, second, third)
	}
	if got := c.Pending().File.Name; got != third {
		t.Errorf("Pending file %q, want %q", got, third)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SelectFile(File{Name: "photo.png"}); !errors.Is(err, ErrClosed) {
		t.Errorf("SelectFile() on closed composer = %v, want ErrClosed", err)
	}
	c.Open()
	if got, _ := c.SelectFile(File{Name: "photo.png"}); got != "photo.png" {
		t.Errorf("first selection of new session renamed to %q", got)
	}
}

func TestUniqueName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tests := []struct {
		name, prev, want string
	}{
		{name: "photo.png", prev: "photo.png", want: "photo_1700000000000.png"},
		{name: "my.photo.jpeg", prev: "x", want: "my.photo_1700000000000.jpeg"},
		{name: "photo", prev: "x", want: "photo_1700000000000"},
		{name: "photo.png", prev: "photo_1700000000000.png", want: "photo_1700000000001.png"},
	}
	for _, tt := range tests {
		if got := uniqueName(tt.name, tt.prev, now); got != tt.want {
			t.Errorf("uniqueName(%q, %q) = %q, want %q", tt.name, tt.prev, got, tt.want)
		}
	}
}
