package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"promobot/internal/advertise"
	"promobot/internal/schedule"
	"promobot/internal/state"
	"promobot/internal/storage"
	logx "promobot/pkg/logx"
)

type fakeRunner struct {
	res advertise.SessionResult
	err error
}

func (f *fakeRunner) Run(ctx context.Context, tenantKey string, opts advertise.Options) (advertise.SessionResult, error) {
	if f.err != nil {
		return advertise.SessionResult{}, f.err
	}
	return f.res, nil
}

func newTestServer(t *testing.T, runner schedule.SessionRunner) (*Server, *state.Repo) {
	t.Helper()
	repo := state.NewRepo(storage.NewMemory(), logx.Nop())
	rt := schedule.New(repo, runner, nil, logx.Nop(), schedule.Config{})
	return New(Config{}, runner, rt, repo, logx.Nop()), repo
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRunner{})
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestRunSession(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRunner{res: advertise.SessionResult{Status: advertise.StatusOK, Posted: 2}})
	rec := doJSON(t, s.router(), http.MethodPost, "/v1/sessions", `{"tenant_key":"club","dry_run":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var res advertise.SessionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("body: %v", err)
	}
	if res.Posted != 2 {
		t.Fatalf("res = %+v", res)
	}
}

func TestRunSessionValidation(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRunner{})
	r := s.router()

	if rec := doJSON(t, r, http.MethodPost, "/v1/sessions", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing tenant_key: status = %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/v1/sessions", `{"tenant_key":"x","bogus":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/v1/sessions", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: status = %d", rec.Code)
	}
}

func TestRunSessionUnknownTenant(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRunner{err: fmt.Errorf("tenant %q: %w", "ghost", state.ErrTenantNotFound)})
	rec := doJSON(t, s.router(), http.MethodPost, "/v1/sessions", `{"tenant_key":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	// Only the missing-tenant error maps to 404, even if the message mentions
	// something not being found.
	s, _ = newTestServer(t, &fakeRunner{err: fmt.Errorf("target %q not found", "r/gone")})
	rec = doJSON(t, s.router(), http.MethodPost, "/v1/sessions", `{"tenant_key":"club"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for non-tenant failure", rec.Code)
	}
}

func TestCreateAndListSchedules(t *testing.T) {
	t.Parallel()
	s, repo := newTestServer(t, &fakeRunner{})
	if err := repo.SaveTenant(context.Background(), state.Tenant{Key: "club"}); err != nil {
		t.Fatalf("SaveTenant: %v", err)
	}
	r := s.router()

	rec := doJSON(t, r, http.MethodPost, "/v1/schedules", `{"tenant_key":"club","delay_ms":60000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body)
	}
	var created struct {
		Schedule state.Schedule `json:"schedule"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("body: %v", err)
	}
	if created.Schedule.ID == "" || created.Schedule.TenantKey != "club" {
		t.Fatalf("schedule = %+v", created.Schedule)
	}
	if created.Schedule.Reason != state.ReasonManual {
		t.Fatalf("Reason = %q", created.Schedule.Reason)
	}

	rec = doJSON(t, r, http.MethodGet, "/v1/schedules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var listed struct {
		Schedules []state.Schedule `json:"schedules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(listed.Schedules) != 1 || listed.Schedules[0].ID != created.Schedule.ID {
		t.Fatalf("schedules = %v", listed.Schedules)
	}
}

func TestCreateScheduleUnknownTenant(t *testing.T) {
	t.Parallel()
	s, _ := newTestServer(t, &fakeRunner{})
	rec := doJSON(t, s.router(), http.MethodPost, "/v1/schedules", `{"tenant_key":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
