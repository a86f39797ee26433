package identity

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/ds-tutor/internal/domain"
)

type memRepo struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	upserts int
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*domain.User)}
}

func (m *memRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memRepo) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	u := *user
	m.users[user.UserID] = &u
	return nil
}

func (m *memRepo) UpdateLastSeen(context.Context, string, time.Time) error { return nil }
func (m *memRepo) UpdateLevel(context.Context, string, domain.Level) error { return nil }
func (m *memRepo) DeleteInactiveUsers(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
func (m *memRepo) Ping(context.Context) error { return nil }
func (m *memRepo) Close() error               { return nil }

func TestMiddlewareCreatesAnonymousUser(t *testing.T) {
	repo := newMemRepo()
	var gotUser, gotSession, gotName string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotSession = SessionIDFromContext(r.Context())
		gotName = UsernameFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tutor/history", nil)
	req.Header.Set(SessionHeaderName, "tab-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if !isValidAnonID(gotUser) {
		t.Fatalf("user id %q is not a valid anonymous id", gotUser)
	}
	if gotSession != "tab-1" {
		t.Errorf("session = %q, want tab-1", gotSession)
	}
	if gotName != deriveUsername(gotUser) {
		t.Errorf("username = %q", gotName)
	}
	if repo.users[gotUser] == nil {
		t.Error("user was not persisted")
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != gotUser {
		t.Errorf("cookies = %+v", cookies)
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	repo := newMemRepo()
	id := "anon_" + "0123456789abcdef0123456789abcdef"
	repo.users[id] = &domain.User{UserID: id, Level: domain.LevelAdvanced}

	var gotUser string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotUser != id {
		t.Errorf("user = %q, want %q", gotUser, id)
	}
	if repo.upserts != 0 {
		t.Errorf("existing user was rewritten %d times", repo.upserts)
	}
	if repo.users[id].Level != domain.LevelAdvanced {
		t.Error("stored level preference was lost")
	}
}

func TestEnsureUserLogsReturningUser(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	repo := newMemRepo()
	now := time.Now()
	repo.users["anon_recent"] = &domain.User{UserID: "anon_recent", LastSeenAt: now.Add(-time.Minute)}
	repo.users["anon_away"] = &domain.User{UserID: "anon_away", Level: domain.LevelAdvanced, LastSeenAt: now.Add(-72 * time.Hour)}

	if err := ensureUser(context.Background(), repo, "anon_recent"); err != nil {
		t.Fatalf("ensureUser: %v", err)
	}
	if strings.Contains(buf.String(), "Returning user") {
		t.Errorf("recent user logged as returning: %s", buf.String())
	}

	if err := ensureUser(context.Background(), repo, "anon_away"); err != nil {
		t.Fatalf("ensureUser: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Returning user") || !strings.Contains(out, "user_id=anon_away") {
		t.Errorf("missing returning user log: %s", out)
	}
	if repo.upserts != 0 {
		t.Errorf("upserts = %d, want 0 for existing users", repo.upserts)
	}
}

func TestSanitizeSessionID(t *testing.T) {
	tests := map[string]string{
		"":                  DefaultSessionIDValue,
		"  ":                DefaultSessionIDValue,
		"tab-1":             "tab-1",
		"bad id with space": DefaultSessionIDValue,
		"cli:42":            "cli:42",
	}
	for in, want := range tests {
		if got := sanitizeSessionID(in); got != want {
			t.Errorf("sanitizeSessionID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSessionIDFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/tutor?session_id=tab-9", nil)
	if got := sessionIDFromRequest(req); got != "tab-9" {
		t.Errorf("sessionIDFromRequest() = %q, want tab-9", got)
	}
}

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "anon_x", "")
	if UserIDFromContext(ctx) != "anon_x" {
		t.Error("user id not carried")
	}
	if SessionIDFromContext(ctx) != DefaultSessionIDValue {
		t.Errorf("session = %q, want default", SessionIDFromContext(ctx))
	}
	if SessionIDFromContext(context.Background()) != DefaultSessionIDValue {
		t.Error("empty context should yield default session")
	}
}
