package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// An ID identifies a backend resource. The backend keys rows by integer but
// the client treats identifiers as opaque strings, so both JSON strings and
// numbers decode into an ID.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// A User is the profile the backend returns for a user id.
type User struct {
	ID    ID     `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// UnknownUser is the author placeholder for posts whose author could not be
// fetched.
var UnknownUser = User{Name: "Unknown User"}

// A Post represents a post in the feed.
type Post struct {
	ID            ID        `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"image_url,omitempty"`
	AuthorID      ID        `json:"user_id"`
	Author        *User     `json:"user,omitempty"`
	Upvotes       int       `json:"upvotes"`
	Downvotes     int       `json:"downvotes"`
	CommentsCount int       `json:"comments_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// A Tag is display data attached to the feed.
type Tag struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// LoginResult holds the credential issued by a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// NewPost is the body of a post creation request.
type NewPost struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	UserID  ID     `json:"user_id"`
}

// CreatePostResponse is the body returned by post creation. Backends in the
// wild put the new identifier in different places.
type CreatePostResponse struct {
	ID      ID     `json:"id"`
	PostID  ID     `json:"post_id"`
	Message string `json:"message,omitempty"`
	Data    *struct {
		ID ID `json:"id"`
	} `json:"data,omitempty"`
}

// Identifier returns the first identifier present in id, post_id or data.id.
func (r CreatePostResponse) Identifier() (ID, bool) {
	switch {
	case r.ID != "":
		return r.ID, true
	case r.PostID != "":
		return r.PostID, true
	case r.Data != nil && r.Data.ID != "":
		return r.Data.ID, true
	}
	return "", false
}

// A Photo is the binary attachment of a new post.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PhotoUpload is the multipart body of a photo upload.
type PhotoUpload struct {
	Photo  Photo
	PostID ID
	UserID ID
}

// post is a post as it arrives over the wire.
type post struct {
	ID            ID     `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Caption       string `json:"caption"`
	ImageURL      string `json:"image_url"`
	UserID        ID     `json:"user_id"`
	User          *User  `json:"user"`
	Upvotes       int    `json:"upvotes"`
	Downvotes     int    `json:"downvotes"`
	CommentsCount int    `json:"comments_count"`
	Timestamp     string `json:"timestamp"`
}

// timestampLayouts are tried in order when parsing post timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func (p post) APIPost() Post {
	out := Post{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		ImageURL:      p.ImageURL,
		AuthorID:      p.UserID,
		Author:        p.User,
		Upvotes:       max(p.Upvotes, 0),
		Downvotes:     max(p.Downvotes, 0),
		CommentsCount: max(p.CommentsCount, 0),
	}
	if out.Content == "" {
		out.Content = p.Caption
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, p.Timestamp); err == nil {
			out.Timestamp = ts
			break
		}
	}
	return out
}
