package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Client calls the feed backend REST endpoints.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Limiter paces outgoing requests when set.
	Limiter *rate.Limiter
}

// DefaultBaseURL is where the backend listens when nothing else is configured.
const DefaultBaseURL = "http://127.0.0.1:5000"

// requestIDHeader carries the id used to correlate client and server logs.
const requestIDHeader = "X-Request-ID"

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, body)
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// send executes req and returns the full response body. Non-2xx responses are
// returned as a *StatusError together with the body.
func (c *Client) send(op string, req *http.Request) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%s: wait for limiter: %w", op, err)
		}
	}

	reqID := uuid.NewString()
	req.Header.Set(requestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	logger := c.logger().With("op", op, "request_id", reqID, "method", req.Method, "path", req.URL.Path)

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		logger.Error("Request failed", "error", err.Error())
		return nil, fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("Could not read response body", "error", err.Error())
		return nil, fmt.Errorf("%s: read body: %w: %w", op, ErrNetwork, err)
	}
	logger.Info("Request completed", "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, newStatusError(op, resp.StatusCode, body)
	}
	return body, nil
}

func decode(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Login exchanges an email and password for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "login"
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.send(op, req)
	if err != nil {
		return LoginResult{}, err
	}
	var res LoginResult
	if err := decode(op, body, &res); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	const op = "register"
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/users/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = c.send(op, req)
	return err
}

// GetUser fetches the profile of a single user.
func (c *Client) GetUser(ctx context.Context, id ID) (User, error) {
	const op = "get user"
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.send(op, req)
	if err != nil {
		return User{}, err
	}
	var u User
	if err := decode(op, body, &u); err != nil {
		return User{}, err
	}
	if u.ID == "" {
		u.ID = id
	}
	return u, nil
}

// ListPosts fetches the raw post collection, in the order the backend
// returns it.
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	const op = "list posts"
	req, err := c.newRequest(ctx, http.MethodGet, "/api/posts", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.send(op, req)
	if err != nil {
		return nil, err
	}
	var raw []post
	if err := decode(op, body, &raw); err != nil {
		return nil, err
	}
	out := make([]Post, len(raw))
	for i, p := range raw {
		out[i] = p.APIPost()
	}
	return out, nil
}

// ListTags fetches all tags. Both a {"tags": [...]} envelope and a bare array
// are accepted.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	const op = "list tags"
	req, err := c.newRequest(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body, err := c.send(op, req)
	if err != nil {
		return nil, err
	}

	tags := []Tag{}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := decode(op, trimmed, &tags); err != nil {
			return nil, err
		}
		return tags, nil
	}

	var envelope struct {
		Tags []Tag `json:"tags"`
	}
	if err := decode(op, body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Tags != nil {
		tags = envelope.Tags
	}
	return tags, nil
}

// CreatePost creates a post on behalf of the holder of token.
func (c *Client) CreatePost(ctx context.Context, token string, p NewPost) (CreatePostResponse, error) {
	const op = "create post"
	req, err := c.newJSONRequest(ctx, http.MethodPost, "/api/posts", p)
	if err != nil {
		return CreatePostResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	body, err := c.send(op, req)
	if err != nil {
		return CreatePostResponse{}, err
	}
	var res CreatePostResponse
	if err := decode(op, body, &res); err != nil {
		return CreatePostResponse{}, err
	}
	return res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadPhoto attaches a photo to an existing post.
func (c *Client) UploadPhoto(ctx context.Context, token string, u PhotoUpload) error {
	const op = "upload photo"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename="%s"`, quoteEscaper.Replace(u.Photo.Filename)))
	contentType := u.Photo.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("%s: create part: %w", op, err)
	}
	if _, err := part.Write(u.Photo.Data); err != nil {
		return fmt.Errorf("%s: write photo: %w", op, err)
	}
	if err := mw.WriteField("post_id", string(u.PostID)); err != nil {
		return fmt.Errorf("%s: write post_id: %w", op, err)
	}
	if err := mw.WriteField("user_id", string(u.UserID)); err != nil {
		return fmt.Errorf("%s: write user_id: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("%s: close multipart: %w", op, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/photos", &buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	_, err = c.send(op, req)
	return err
}
