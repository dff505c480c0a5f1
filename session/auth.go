package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mercedmeals/feedclient/api"
	"github.com/mercedmeals/feedclient/api/validator"
)

// An AuthAPI issues and creates credentials.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (api.LoginResult, error)
	Register(ctx context.Context, name, email, password string) error
}

// Authenticator owns the credential lifecycle: it is the only writer of the
// token and user keys.
type Authenticator struct {
	API    AuthAPI
	Store  Store
	Val    *validator.Validator
	Logger *slog.Logger
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registerInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// An Error is a failed write call. Its message is the text shown to the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// userMessage returns the text shown to the user for a failed write call.
func userMessage(err error, fallback string) string {
	var se *api.StatusError
	switch {
	case errors.As(err, &se) && se.Message != "":
		return se.Message
	case errors.As(err, &se):
		return fallback
	case errors.Is(err, api.ErrNetwork):
		return "Network error. Please try again."
	}
	return fallback
}

// Login authenticates with the backend and persists the issued token and the
// user summary.
func (a *Authenticator) Login(ctx context.Context, email, password string) (api.User, error) {
	if err := a.Val.Err(loginInput{Email: email, Password: password}); err != nil {
		return api.User{}, err
	}

	res, err := a.API.Login(ctx, email, password)
	if err != nil {
		a.Logger.Error("Login failed", "error", err.Error())
		return api.User{}, &Error{Message: userMessage(err, "Login failed"), Err: err}
	}
	if _, err := Decode(res.AccessToken); err != nil {
		return api.User{}, fmt.Errorf("login returned unusable token: %w", err)
	}

	user, err := json.Marshal(res.User)
	if err != nil {
		return api.User{}, fmt.Errorf("encode user: %w", err)
	}
	if err := a.Store.Set(ctx, KeyToken, res.AccessToken); err != nil {
		return api.User{}, fmt.Errorf("store token: %w", err)
	}
	if err := a.Store.Set(ctx, KeyUser, string(user)); err != nil {
		return api.User{}, fmt.Errorf("store user: %w", err)
	}

	a.Logger.Info("Logged in", "user_id", res.User.ID)
	return res.User, nil
}

// Register creates an account. It does not log in.
func (a *Authenticator) Register(ctx context.Context, name, email, password string) error {
	if err := a.Val.Err(registerInput{Name: name, Email: email, Password: password}); err != nil {
		return err
	}
	if err := a.API.Register(ctx, name, email, password); err != nil {
		a.Logger.Error("Registration failed", "error", err.Error())
		return &Error{Message: userMessage(err, "Registration failed"), Err: err}
	}
	a.Logger.Info("Registered", "email", email)
	return nil
}

// Logout removes the token and the user summary together.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.Store.Delete(ctx, KeyToken, KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	a.Logger.Info("Logged out")
	return nil
}

// CurrentUser returns the user summary stored at login.
func (a *Authenticator) CurrentUser(ctx context.Context) (api.User, error) {
	raw, err := a.Store.Get(ctx, KeyUser)
	if err != nil {
		return api.User{}, fmt.Errorf("read user: %w", err)
	}
	var u api.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return api.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}
