package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evently/internal/auth"
	"evently/internal/calendar"
	"evently/internal/catalog"
	"evently/internal/config"
	"evently/internal/model"
	"evently/internal/store"
)

var testNow = time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	handler http.Handler
	holder  *catalog.Holder
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	holder := catalog.NewHolder(catalog.New(catalog.SourceBuiltin, catalog.Sample(2024, time.UTC)))
	clock := calendar.FixedClock(testNow)
	d := Deps{
		Config:   cfg,
		Catalog:  holder,
		Auth:     auth.NewMock(store.NewState(store.NewMemory()), auth.MockOptions{Clock: clock}),
		Clock:    clock,
		Location: time.UTC,
	}
	if mutate != nil {
		mutate(&d)
	}
	s := NewServer(d)
	return &testEnv{srv: s, handler: s.Handler(), holder: holder}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			r = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func eventIDs(events []model.Event) string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}

func TestHealth(t *testing.T) {
	rec := newTestEnv(t, nil).do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name      string
		query     string
		wantIDs   string
		wantTotal int
	}{
		{name: "default order", query: "", wantIDs: "1,2,3,4,5,6", wantTotal: 6},
		{name: "date", query: "?sort=date", wantIDs: "3,1,4,5,2,6", wantTotal: 6},
		{name: "free", query: "?price=free&sort=date", wantIDs: "3,5", wantTotal: 2},
		{name: "paid", query: "?price=paid&sort=date", wantIDs: "1,4,2,6", wantTotal: 4},
		{name: "second price page", query: "?sort=price&page_size=2&page=2", wantIDs: "4,6", wantTotal: 6},
		{name: "page clamps", query: "?sort=price&page_size=4&page=99", wantIDs: "2,1", wantTotal: 6},
		{name: "category", query: "?category=tech&sort=date", wantIDs: "1,5", wantTotal: 2},
		{name: "search", query: "?q=city", wantIDs: "5", wantTotal: 1},
		{name: "date range", query: "?from=2024-09-15&to=2024-09-30&sort=date", wantIDs: "4,5", wantTotal: 2},
		{name: "bad values ignored", query: "?price=cheap&min=abc&page=x&sort=date", wantIDs: "3,1,4,5,2,6", wantTotal: 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/events"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			resp := decode[eventsResponse](t, rec)
			if got := eventIDs(resp.Events); got != tt.wantIDs {
				t.Errorf("ids = %s, want %s", got, tt.wantIDs)
			}
			if resp.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", resp.Total, tt.wantTotal)
			}
		})
	}
}

func TestEventsFacetsFollowSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := decode[eventsResponse](t, env.do(t, http.MethodGet, "/api/events", nil))
	if resp.Facets.Free != 2 || resp.Facets.MaxPrice != 150 {
		t.Fatalf("facets = %+v", resp.Facets)
	}

	env.holder.Replace(catalog.New("test", catalog.Sample(2024, time.UTC)[:1]))
	resp = decode[eventsResponse](t, env.do(t, http.MethodGet, "/api/events", nil))
	if resp.Facets.Free != 0 || resp.Total != 1 {
		t.Errorf("stale facets after replace: %+v total=%d", resp.Facets, resp.Total)
	}
}

func TestEventDetail(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/events/4", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	ev := decode[eventResponse](t, rec)
	if ev.Title != "Modern Art Expo" || ev.Registered {
		t.Errorf("event = %+v", ev)
	}

	if rec := env.do(t, http.MethodGet, "/api/events/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d", rec.Code)
	}
}

func TestCalendar(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/calendar?year=2024&month=8", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	cal := decode[calendarResponse](t, rec)
	if cal.Title != "September 2024" || cal.Year != 2024 || cal.Month != 8 {
		t.Fatalf("calendar = %s %d/%d", cal.Title, cal.Year, cal.Month)
	}
	// 1 Sep 2024 is a Sunday, so there is no leading padding.
	if len(cal.Cells) != 30 || cal.Cells[0].Day != 1 || !cal.Cells[0].IsToday {
		t.Errorf("cells = %d, first = %+v", len(cal.Cells), cal.Cells[0])
	}
	if c := cal.Cells[11]; c.Day != 12 || !c.HasEvent || len(c.Events) != 1 || c.Events[0] != "1" {
		t.Errorf("Sep 12 = %+v", c)
	}
	if len(cal.Weeks) != 5 {
		t.Errorf("weeks = %d", len(cal.Weeks))
	}
	if cal.Prev != (calendar.Cursor{Year: 2024, Month: 7}) || cal.Next != (calendar.Cursor{Year: 2024, Month: 9}) {
		t.Errorf("prev/next = %+v %+v", cal.Prev, cal.Next)
	}

	cal = decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/calendar?year=2024&month=11&step=1", nil))
	if cal.Title != "January 2025" {
		t.Errorf("stepped title = %q", cal.Title)
	}

	cal = decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/calendar", nil))
	if cal.Year != 2024 || cal.Month != 8 {
		t.Errorf("default cursor = %d/%d", cal.Year, cal.Month)
	}
}

func TestCalendarDay(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		query   string
		status  int
		message string
	}{
		{query: "year=2024&month=8&day=12", status: http.StatusOK, message: "1 event(s) on September 12, 2024"},
		{query: "year=2024&month=8&day=2", status: http.StatusOK, message: "No events scheduled for September 2, 2024"},
		{query: "year=2024&month=8&day=31", status: http.StatusBadRequest},
		{query: "year=2024&month=8", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/calendar/day?"+tt.query, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			day := decode[dayResponse](t, rec)
			if day.Message != tt.message {
				t.Errorf("message = %q, want %q", day.Message, tt.message)
			}
		})
	}
}

func TestCalendarPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/calendar?year=2024&month=8", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{`data-ready="true"`, "September 2024", "AI Leaders Summit", "City Hackathon", "month=7"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, "Sunset Sounds Festival") {
		t.Error("October event rendered in September")
	}
}

func TestAccountFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	if rec := env.do(t, http.MethodGet, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /api/me = %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/login", loginRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty login = %d", rec.Code)
	}
	if e := decode[errResp](t, rec); e.Error != auth.ErrMissingFields.Error() || e.Fields["email"] == "" {
		t.Errorf("empty login error = %+v", e)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", loginRequest{Email: "ada@mit.edu", Password: "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
	if u := decode[model.User](t, rec); u.Email != "ada@mit.edu" || !u.Verified {
		t.Errorf("user = %+v", u)
	}

	if rec := env.do(t, http.MethodPost, "/api/registrations", registerRequest{EventID: "1"}); rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/registrations", registerRequest{EventID: "1"}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/registrations", registerRequest{EventID: "404"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown event register = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/registrations", registerRequest{EventID: "5"}); rec.Code != http.StatusCreated {
		t.Fatalf("register 5 = %d", rec.Code)
	}

	regs := decode[[]model.Registration](t, env.do(t, http.MethodGet, "/api/registrations", nil))
	if len(regs) != 2 || regs[0].EventID != "1" || regs[0].Event.Title != "AI Leaders Summit" {
		t.Errorf("registrations = %+v", regs)
	}

	ev := decode[eventResponse](t, env.do(t, http.MethodGet, "/api/events/1", nil))
	if !ev.Registered {
		t.Error("event 1 should be marked registered")
	}

	dash := decode[dashboardResponse](t, env.do(t, http.MethodGet, "/api/dashboard", nil))
	if dash.RegisteredCount != 2 || dash.TotalAttendees != 320+150 || !dash.Verified {
		t.Errorf("dashboard = %+v", dash)
	}
	if got := eventIDs([]model.Event{dash.Upcoming[0].Event, dash.Upcoming[1].Event}); got != "1,5" {
		t.Errorf("upcoming = %s", got)
	}
	if dash.MemberSince != "September 2024" {
		t.Errorf("member since = %q", dash.MemberSince)
	}

	rec = env.do(t, http.MethodGet, "/api/registrations/calendar.ics", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("ics = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if body := rec.Body.String(); !strings.Contains(body, "BEGIN:VCALENDAR") || !strings.Contains(body, "City Hackathon") {
		t.Errorf("ics body = %s", body)
	}

	cal := decode[calendarResponse](t, env.do(t, http.MethodGet, "/api/calendar?year=2024&month=8&source=registrations", nil))
	if !cal.Cells[11].HasEvent || cal.Cells[19].HasEvent {
		t.Error("registration calendar should only mark registered events")
	}

	if rec := env.do(t, http.MethodDelete, "/api/registrations/1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("unregister = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/registrations/1", nil); rec.Code != http.StatusNoContent {
		t.Errorf("second unregister = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/api/me", map[string]string{"bio": "Hello", "university": "MIT"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile = %d %s", rec.Code, rec.Body.String())
	}
	if u := decode[model.User](t, rec); u.Bio != "Hello" || u.University != "MIT" {
		t.Errorf("updated user = %+v", u)
	}

	if rec := env.do(t, http.MethodPost, "/api/auth/logout", nil); rec.Code != http.StatusNoContent {
		t.Errorf("logout = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/registrations", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("registrations after logout = %d", rec.Code)
	}
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t, nil)

	req := auth.SignupRequest{
		FirstName:       "Grace",
		LastName:        "Hopper",
		Email:           "grace@yale.edu",
		Password:        "cobol59",
		ConfirmPassword: "cobol59",
	}
	rec := env.do(t, http.MethodPost, "/api/auth/signup", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d %s", rec.Code, rec.Body.String())
	}
	if u := decode[model.User](t, rec); u.Name != "Grace Hopper" {
		t.Errorf("user = %+v", u)
	}

	req.ConfirmPassword = "fortran"
	rec = env.do(t, http.MethodPost, "/api/auth/signup", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatch signup = %d", rec.Code)
	}
	if e := decode[errResp](t, rec); e.Error != auth.ErrPasswordMismatch.Error() {
		t.Errorf("mismatch error = %q", e.Error)
	}
}

func TestAccountsUnavailable(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Auth = nil })

	for _, path := range []string{"/api/me", "/api/registrations", "/api/dashboard"} {
		if rec := env.do(t, http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d", path, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodGet, "/api/events/1", nil); rec.Code != http.StatusOK {
		t.Errorf("event detail without accounts = %d", rec.Code)
	}
}

func TestRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path string
		body string
	}{
		{path: "/api/auth/login", body: `{"email":`},
		{path: "/api/auth/login", body: `{"email":"a@b.c","password":"secret1","remember":true}`},
		{path: "/api/browse", body: `[1,2]`},
	}
	for _, tt := range tests {
		if rec := env.do(t, http.MethodPost, tt.path, tt.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s = %d", tt.path, tt.body, rec.Code)
		}
	}
}

func TestBrowse(t *testing.T) {
	env := newTestEnv(t, nil)

	res := decode[browseResponse](t, env.do(t, http.MethodGet, "/api/browse", nil))
	if res.Page.Total != 6 || res.State.Page != 1 || res.Source != catalog.SourceBuiltin {
		t.Fatalf("initial browse = %+v", res)
	}

	res = decode[browseResponse](t, env.do(t, http.MethodPost, "/api/browse", map[string]any{"price": "free", "sort": "date"}))
	if got := eventIDs(res.Page.Items); got != "3,5" {
		t.Errorf("free ids = %s", got)
	}

	res = decode[browseResponse](t, env.do(t, http.MethodPost, "/api/browse", map[string]any{"search": "city"}))
	if res.SearchOutcome != "applied" || eventIDs(res.Page.Items) != "5" {
		t.Errorf("search result = %s outcome=%q", eventIDs(res.Page.Items), res.SearchOutcome)
	}

	res = decode[browseResponse](t, env.do(t, http.MethodPost, "/api/browse", map[string]any{"action": "reset"}))
	if res.State.Search != "" || res.State.Price != "any" || res.Page.Total != 6 {
		t.Errorf("after reset = %+v", res.State)
	}

	res = decode[browseResponse](t, env.do(t, http.MethodPost, "/api/browse", map[string]any{"format": "online", "mode": "list"}))
	if eventIDs(res.Page.Items) != "3" || res.State.Mode != "list" {
		t.Errorf("format filter = %s mode=%s", eventIDs(res.Page.Items), res.State.Mode)
	}
	res = decode[browseResponse](t, env.do(t, http.MethodPost, "/api/browse", map[string]any{"location": "remote"}))
	if res.State.Format != model.FormatOnline {
		t.Errorf("location update dropped format: %+v", res.State)
	}
}

func TestAdminEndpoints(t *testing.T) {
	hash, err := auth.HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t, func(d *Deps) {
		d.Config.BasicAuth = config.BasicAuthConfig{Username: "admin", PasswordHash: hash}
	})

	tests := []struct {
		name   string
		user   string
		pass   string
		status int
	}{
		{name: "no credentials", status: http.StatusUnauthorized},
		{name: "wrong password", user: "admin", pass: "nope", status: http.StatusUnauthorized},
		{name: "wrong user", user: "root", pass: "hunter22", status: http.StatusUnauthorized},
		{name: "ok", user: "admin", pass: "hunter22", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/status", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				st := decode[adminStatus](t, rec)
				if st.Events != 6 || st.Source != catalog.SourceBuiltin {
					t.Errorf("status = %+v", st)
				}
			} else if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/reload", nil)
	req.SetBasicAuth("admin", "hunter22")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("reload without refresher = %d", rec.Code)
	}
}

func TestAdminReload(t *testing.T) {
	holder := catalog.NewHolder(nil)
	loader := catalog.NewLoader(catalog.Options{
		DefaultYear: 2024,
		Location:    time.UTC,
		Now:         func() time.Time { return testNow },
	})
	env := newTestEnv(t, func(d *Deps) {
		d.Catalog = holder
		d.Refresher = catalog.NewRefresher(loader, holder)
	})

	if st := decode[adminStatus](t, env.do(t, http.MethodGet, "/api/admin/status", nil)); st.Events != 0 {
		t.Fatalf("before reload = %+v", st)
	}

	rec := env.do(t, http.MethodPost, "/api/admin/reload", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reload = %d %s", rec.Code, rec.Body.String())
	}
	st := decode[adminStatus](t, rec)
	if st.Events != 6 || st.Source != catalog.SourceBuiltin || st.Loader != "builtin" {
		t.Errorf("after reload = %+v", st)
	}
	if resp := decode[eventsResponse](t, env.do(t, http.MethodGet, "/api/events", nil)); resp.Total != 6 {
		t.Errorf("events after reload = %d", resp.Total)
	}
}

func TestWriteAuthError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{err: auth.ErrInvalidCredentials, status: http.StatusUnauthorized, msg: "invalid credentials"},
		{err: auth.ErrNotLoggedIn, status: http.StatusUnauthorized},
		{err: auth.ErrUnknownEvent, status: http.StatusNotFound},
		{err: auth.ErrAlreadyRegistered, status: http.StatusConflict},
		{err: &auth.ValidationError{Err: auth.ErrMissingFields, Fields: map[string]string{"email": "Email is required"}}, status: http.StatusBadRequest, msg: auth.ErrMissingFields.Error()},
		{err: fmt.Errorf("login: %w", context.Canceled), status: http.StatusServiceUnavailable},
		{err: errors.New("disk full"), status: http.StatusInternalServerError, msg: "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAuthError(rec, tt.err)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.msg != "" {
				if e := decode[errResp](t, rec); e.Error != tt.msg {
					t.Errorf("error = %q, want %q", e.Error, tt.msg)
				}
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	if got := parseIntDefault(" 7 ", 1); got != 7 {
		t.Errorf("parseIntDefault = %d", got)
	}
	if got := parseIntDefault("seven", 1); got != 1 {
		t.Errorf("parseIntDefault fallback = %d", got)
	}
	if p := parseFloatPtr("$25"); p == nil || *p != 25 {
		t.Errorf("parseFloatPtr($25) = %v", p)
	}
	if p := parseFloatPtr("-3"); p != nil {
		t.Errorf("negative price accepted: %v", *p)
	}
	if loc := resolveLocationOrLocal("Mars/Olympus"); loc != time.Local {
		t.Errorf("bad zone = %v", loc)
	}
}
