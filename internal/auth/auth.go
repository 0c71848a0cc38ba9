// Package auth is the account capability of evently: sign-in, sign-up,
// profile edits and event registrations for the single local user.
//
// There is no credential verification. Mock accepts any well-formed login
// and keeps its state in the local store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"evently/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingFields      = errors.New("please fill in all required fields")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrNotLoggedIn        = errors.New("must be logged in")
	ErrAlreadyRegistered  = errors.New("already registered for this event")
	ErrUnknownEvent       = errors.New("unknown event")
)

// ValidationError carries per-field messages for a rejected form. Err is
// one of the sentinel errors above so callers can use errors.Is.
type ValidationError struct {
	Err    error
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(e.Err.Error())
	for i, k := range keys {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// SignupRequest is the sign-up form.
type SignupRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	University      string `json:"university,omitempty"`
}

// ProfileUpdate is a partial profile edit; nil fields are left alone.
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	University *string `json:"university,omitempty"`
	Bio        *string `json:"bio,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
}

// Provider is what the rest of the application needs from an account
// backend.
type Provider interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Signup(ctx context.Context, req SignupRequest) (model.User, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd ProfileUpdate) (model.User, error)

	// CurrentUser returns the signed-in user, if any.
	CurrentUser() (model.User, bool)

	RegisterForEvent(ctx context.Context, ev model.Event) (model.Registration, error)
	UnregisterFromEvent(ctx context.Context, eventID string) error
	IsRegistered(eventID string) bool
	Registrations() []model.Registration
}
