package auth

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"evently/internal/calendar"
	"evently/internal/delay"
	appLog "evently/internal/log"
	"evently/internal/model"
	"evently/internal/store"
)

const (
	// AdminEmail is the one address that signs in with the admin role.
	AdminEmail = "admin@university.edu"

	minPasswordLen = 6
	avatarBase     = "https://ui-avatars.com/api/"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Latency simulates a remote account service.
type Latency struct {
	Login   time.Duration
	Signup  time.Duration
	Profile time.Duration
}

// DemoLatency matches the waits of the demo web client.
var DemoLatency = Latency{
	Login:   1500 * time.Millisecond,
	Signup:  1500 * time.Millisecond,
	Profile: 1000 * time.Millisecond,
}

// MockOptions configures NewMock. The zero value is usable: no latency,
// system clock, random UUIDs.
type MockOptions struct {
	Latency Latency
	Clock   calendar.Clock
	NewID   func() string
}

// Mock is the in-process Provider. Every state change is written through
// to the store before the call returns.
type Mock struct {
	state   *store.State
	latency Latency
	clock   calendar.Clock
	newID   func() string

	mu   sync.RWMutex
	user *model.User
	regs []model.Registration
}

var _ Provider = (*Mock)(nil)

// NewMock loads the persisted user and registrations from state.
func NewMock(state *store.State, opts MockOptions) *Mock {
	if opts.Clock == nil {
		opts.Clock = calendar.SystemClock{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	m := &Mock{
		state:   state,
		latency: opts.Latency,
		clock:   opts.Clock,
		newID:   opts.NewID,
		user:    state.LoadUser(),
		regs:    state.LoadRegistrations(),
	}
	if m.user != nil {
		appLog.Info("auth: restored session", "email", m.user.Email, "registrations", len(m.regs))
	}
	return m
}

func (m *Mock) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if err := validateLogin(email, password); err != nil {
		return model.User{}, err
	}
	if err := delay.Sleep(ctx, m.latency.Login); err != nil {
		return model.User{}, err
	}

	local, _, _ := strings.Cut(email, "@")
	u := m.newUser(email, local)

	if err := m.setUser(&u); err != nil {
		return model.User{}, err
	}
	appLog.Info("auth: login", "email", u.Email, "role", u.Role)
	return u, nil
}

func (m *Mock) Signup(ctx context.Context, req SignupRequest) (model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validateSignup(req); err != nil {
		return model.User{}, err
	}
	if err := delay.Sleep(ctx, m.latency.Signup); err != nil {
		return model.User{}, err
	}

	u := m.newUser(req.Email, req.FirstName+" "+req.LastName)
	u.FirstName = req.FirstName
	u.LastName = req.LastName
	if uni := strings.TrimSpace(req.University); uni != "" {
		u.University = uni
	}

	if err := m.setUser(&u); err != nil {
		return model.User{}, err
	}
	appLog.Info("auth: signup", "email", u.Email, "role", u.Role)
	return u, nil
}

// Logout forgets the user and their registrations.
func (m *Mock) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.state.SaveUser(nil); err != nil {
		return err
	}
	if err := m.state.SaveRegistrations(nil); err != nil {
		return err
	}
	m.user = nil
	m.regs = []model.Registration{}
	appLog.Info("auth: logout")
	return nil
}

func (m *Mock) UpdateProfile(ctx context.Context, upd ProfileUpdate) (model.User, error) {
	if _, ok := m.CurrentUser(); !ok {
		return model.User{}, ErrNotLoggedIn
	}
	if err := delay.Sleep(ctx, m.latency.Profile); err != nil {
		return model.User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return model.User{}, ErrNotLoggedIn
	}

	u := *m.user
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	apply(&u.Name, upd.Name)
	apply(&u.FirstName, upd.FirstName)
	apply(&u.LastName, upd.LastName)
	apply(&u.University, upd.University)
	apply(&u.Bio, upd.Bio)
	apply(&u.Avatar, upd.Avatar)
	if upd.Name == nil && (upd.FirstName != nil || upd.LastName != nil) {
		u.Name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if u.Name == "" {
		return model.User{}, &ValidationError{
			Err:    ErrMissingFields,
			Fields: map[string]string{"name": "Name is required"},
		}
	}

	if err := m.state.SaveUser(&u); err != nil {
		return model.User{}, err
	}
	m.user = &u
	return u, nil
}

func (m *Mock) CurrentUser() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// RegisterForEvent records a confirmed registration with a snapshot of ev.
func (m *Mock) RegisterForEvent(ctx context.Context, ev model.Event) (model.Registration, error) {
	if ev.ID == "" {
		return model.Registration{}, ErrUnknownEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return model.Registration{}, ErrNotLoggedIn
	}
	for _, r := range m.regs {
		if r.EventID == ev.ID {
			return model.Registration{}, ErrAlreadyRegistered
		}
	}

	reg := model.Registration{
		ID:           m.newID(),
		EventID:      ev.ID,
		Event:        ev,
		RegisteredAt: m.clock.Now().UTC(),
		Status:       model.StatusConfirmed,
	}
	next := append(append(make([]model.Registration, 0, len(m.regs)+1), m.regs...), reg)
	if err := m.state.SaveRegistrations(next); err != nil {
		return model.Registration{}, err
	}
	m.regs = next
	appLog.Info("auth: registered", "event_id", ev.ID, "registrations", len(next))
	return reg, nil
}

// UnregisterFromEvent drops the registration for eventID. Removing a
// registration that does not exist is not an error.
func (m *Mock) UnregisterFromEvent(ctx context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ErrNotLoggedIn
	}

	next := make([]model.Registration, 0, len(m.regs))
	for _, r := range m.regs {
		if r.EventID != eventID {
			next = append(next, r)
		}
	}
	if len(next) == len(m.regs) {
		return nil
	}
	if err := m.state.SaveRegistrations(next); err != nil {
		return err
	}
	m.regs = next
	appLog.Info("auth: unregistered", "event_id", eventID, "registrations", len(next))
	return nil
}

func (m *Mock) IsRegistered(eventID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.regs {
		if r.EventID == eventID {
			return true
		}
	}
	return false
}

// Registrations returns a copy in registration order.
func (m *Mock) Registrations() []model.Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Registration, len(m.regs))
	copy(out, m.regs)
	return out
}

func (m *Mock) setUser(u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.state.SaveUser(u); err != nil {
		return err
	}
	m.user = u
	return nil
}

func (m *Mock) newUser(email, name string) model.User {
	university := "University"
	if _, domain, ok := strings.Cut(email, "@"); ok && isEdu(email) {
		university = domain
	}
	return model.User{
		ID:         m.newID(),
		Email:      email,
		Name:       name,
		University: university,
		Avatar:     avatarURL(name),
		JoinedAt:   m.clock.Now().UTC(),
		Verified:   isEdu(email),
		Role:       roleFor(email),
	}
}

func isEdu(email string) bool {
	return strings.Contains(strings.ToLower(email), ".edu")
}

func roleFor(email string) model.Role {
	if strings.EqualFold(email, AdminEmail) {
		return model.RoleAdmin
	}
	return model.RoleUser
}

func avatarURL(name string) string {
	q := url.Values{}
	q.Set("name", name)
	q.Set("background", "667eea")
	q.Set("color", "fff")
	return avatarBase + "?" + q.Encode()
}

func validateLogin(email, password string) error {
	fields := map[string]string{}
	missing := checkEmail(fields, email)
	if checkPassword(fields, password) {
		missing = true
	}
	return fieldError(fields, missing)
}

func validateSignup(req SignupRequest) error {
	fields := map[string]string{}
	missing := checkEmail(fields, req.Email)
	if checkPassword(fields, req.Password) {
		missing = true
	}
	if req.FirstName == "" {
		fields["first_name"] = "First name is required"
		missing = true
	}
	if req.LastName == "" {
		fields["last_name"] = "Last name is required"
		missing = true
	}
	switch {
	case req.ConfirmPassword == "":
		fields["confirm_password"] = "Please confirm your password"
		missing = true
	case req.Password != req.ConfirmPassword:
		fields["confirm_password"] = "Passwords do not match"
	}
	return fieldError(fields, missing)
}

// checkEmail records a problem with email and reports whether it is absent.
func checkEmail(fields map[string]string, email string) bool {
	switch {
	case email == "":
		fields["email"] = "Email is required"
		return true
	case !emailPattern.MatchString(email):
		fields["email"] = "Please enter a valid email"
	}
	return false
}

func checkPassword(fields map[string]string, password string) bool {
	switch {
	case password == "":
		fields["password"] = "Password is required"
		return true
	case len(password) < minPasswordLen:
		fields["password"] = "Password must be at least 6 characters"
	}
	return false
}

// fieldError picks the sentinel: anything missing wins, then a lone
// confirmation mismatch, then everything else is bad credentials.
func fieldError(fields map[string]string, missing bool) error {
	if len(fields) == 0 {
		return nil
	}
	err := ErrInvalidCredentials
	switch {
	case missing:
		err = ErrMissingFields
	case len(fields) == 1 && fields["confirm_password"] != "":
		err = ErrPasswordMismatch
	}
	return &ValidationError{Err: err, Fields: fields}
}
