package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/palaver-board/palaver/internal/auth"
	"github.com/palaver-board/palaver/internal/roles"
	"github.com/palaver-board/palaver/internal/shared"
	"github.com/palaver-board/palaver/jobs"
	_ "github.com/palaver-board/palaver/testing"
)

type fakeRepo struct {
	accounts     map[uuid.UUID]*auth.Account
	tokens       map[uuid.UUID]string
	changeTokens map[uuid.UUID]string
	newEmails    map[uuid.UUID]string
	sessions     map[string]uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		accounts:     make(map[uuid.UUID]*auth.Account),
		tokens:       make(map[uuid.UUID]string),
		changeTokens: make(map[uuid.UUID]string),
		newEmails:    make(map[uuid.UUID]string),
		sessions:     make(map[string]uuid.UUID),
	}
}

func (f *fakeRepo) add(username, password string, confirmed, banned bool) *auth.Account {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	a := &auth.Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		IsConfirmed:  confirmed,
		Banned:       banned,
	}
	f.accounts[a.ID] = a
	return a
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeRepo) FindByLogin(ctx context.Context, login string) (*auth.Account, error) {
	for _, a := range f.accounts {
		if a.Username == login || strings.EqualFold(a.Email, login) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) CreateAccount(ctx context.Context, params auth.CreateAccountParams) (*auth.Account, error) {
	for _, a := range f.accounts {
		if a.Username == params.Username {
			return nil, auth.ErrUsernameTaken
		}
		if a.Email == params.Email {
			return nil, auth.ErrEmailTaken
		}
	}
	a := &auth.Account{
		ID:           uuid.New(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		RoleID:       &params.RoleID,
	}
	f.accounts[a.ID] = a
	f.tokens[a.ID] = params.ConfirmToken
	return a, nil
}

func (f *fakeRepo) ConfirmByToken(ctx context.Context, token string) error {
	for id, stored := range f.tokens {
		if stored == token {
			f.accounts[id].IsConfirmed = true
			delete(f.tokens, id)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	f.tokens[userID] = token
	return nil
}

func (f *fakeRepo) FindByResetToken(ctx context.Context, token string) (*auth.Account, error) {
	for id, stored := range f.tokens {
		if stored == token {
			copied := *f.accounts[id]
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	a, ok := f.accounts[userID]
	if !ok {
		return shared.ErrNotFound
	}
	a.PasswordHash = passwordHash
	delete(f.tokens, userID)
	return nil
}

func (f *fakeRepo) SetEmailChangeToken(ctx context.Context, userID uuid.UUID, newEmail, token string, expiresAt time.Time) error {
	if _, ok := f.accounts[userID]; !ok {
		return shared.ErrNotFound
	}
	f.newEmails[userID] = newEmail
	f.changeTokens[userID] = token
	return nil
}

func (f *fakeRepo) ApplyEmailChangeByToken(ctx context.Context, token string) error {
	for id, stored := range f.changeTokens {
		if stored != token {
			continue
		}
		staged := f.newEmails[id]
		for otherID, a := range f.accounts {
			if otherID != id && strings.EqualFold(a.Email, staged) {
				return auth.ErrEmailTaken
			}
		}
		f.accounts[id].Email = staged
		delete(f.changeTokens, id)
		delete(f.newEmails, id)
		return nil
	}
	return shared.ErrNotFound
}

func (f *fakeRepo) TouchLastLogin(ctx context.Context, userID uuid.UUID) error { return nil }

func (f *fakeRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	f.sessions[id] = userID
	return nil
}

func (f *fakeRepo) DeleteSession(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

type fakeRoleSource struct {
	role roles.Role
}

func (f *fakeRoleSource) DefaultRole(ctx context.Context) (*roles.Role, error) {
	copied := f.role
	return &copied, nil
}

type fakeEmailQueue struct {
	sent []jobs.SendEmailPayload
}

func (f *fakeEmailQueue) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error) {
	f.sent = append(f.sent, payload)
	return &asynq.TaskInfo{}, nil
}

type fixture struct {
	repo   *fakeRepo
	emails *fakeEmailQueue
	router chi.Router
	sm     *shared.SessionManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	repo := newFakeRepo()
	emails := &fakeEmailQueue{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(repo, &fakeRoleSource{role: roles.Role{ID: uuid.New(), Name: "member", IsDefault: true}}, emails, "http://board.test", logger)
	handler := auth.NewHandler(logger, svc, sm)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return &fixture{repo: repo, emails: emails, router: r, sm: sm}
}

func (fx *fixture) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	sess, err := fx.sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.ID = "sess-" + uuid.NewString()
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec, sess
}

func (fx *fixture) doAs(t *testing.T, userID uuid.UUID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	sess, err := fx.sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.ID = "sess-" + uuid.NewString()
	sess.SetUser(userID.String())
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterConfirmLogin(t *testing.T) {
	fx := newFixture(t)

	rec, _ := fx.do(t, http.MethodPost, "/register",
		`{"username":"ada","email":"Ada@Example.com","password":"hunter2hunter2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "ada", created.User.Username)
	assert.Equal(t, "ada@example.com", created.User.Email, "email is stored lowercase")

	require.Len(t, fx.emails.sent, 1)
	assert.Contains(t, fx.emails.sent[0].Body, "http://board.test/auth/confirm?token=")

	// Logging in before confirmation is refused.
	rec, _ = fx.do(t, http.MethodPost, "/login", `{"login":"ada","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token := fx.emails.sent[0].Body
	token = token[strings.Index(token, "token=")+len("token="):]
	token = strings.TrimSpace(token)
	rec, _ = fx.do(t, http.MethodGet, "/confirm?token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, sess := fx.do(t, http.MethodPost, "/login", `{"login":"ada","password":"hunter2hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, sess.User(), "session carries the user id after login")
	assert.Len(t, fx.repo.sessions, 1, "session row persisted for auditing")
}

func TestChangeEmailFlow(t *testing.T) {
	fx := newFixture(t)
	account := fx.repo.add("ada", "hunter2hunter2", true, false)

	// Anonymous requests cannot start an email change.
	rec, _ := fx.do(t, http.MethodPost, "/change-email", `{"email":"ada@new.example.com"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, fx.emails.sent)

	rec = fx.doAs(t, account.ID, http.MethodPost, "/change-email", `{"email":"Ada@New.Example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Len(t, fx.emails.sent, 1)
	assert.Equal(t, "ada@new.example.com", fx.emails.sent[0].To, "confirmation goes to the staged address")
	assert.Contains(t, fx.emails.sent[0].Body, "http://board.test/auth/change-email/confirm?token=")
	assert.Equal(t, "ada@example.com", fx.repo.accounts[account.ID].Email, "address stays until the link is followed")

	token := fx.repo.changeTokens[account.ID]
	require.NotEmpty(t, token)

	rec, _ = fx.do(t, http.MethodGet, "/change-email/confirm?token="+token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@new.example.com", fx.repo.accounts[account.ID].Email)

	// The token is single use.
	rec, _ = fx.do(t, http.MethodGet, "/change-email/confirm?token="+token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeEmailRejectsTakenAddress(t *testing.T) {
	fx := newFixture(t)
	account := fx.repo.add("ada", "hunter2hunter2", true, false)
	fx.repo.add("grace", "hunter2hunter2", true, false)

	rec := fx.doAs(t, account.ID, http.MethodPost, "/change-email", `{"email":"grace@example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	token := fx.repo.changeTokens[account.ID]
	require.NotEmpty(t, token)

	rec, _ = fx.do(t, http.MethodGet, "/change-email/confirm?token="+token, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ada@example.com", fx.repo.accounts[account.ID].Email, "collision leaves the stored address untouched")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	fx := newFixture(t)
	fx.repo.add("ada", "hunter2hunter2", true, false)

	rec, _ := fx.do(t, http.MethodPost, "/register",
		`{"username":"ada","email":"other@example.com","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginRejectsBanned(t *testing.T) {
	fx := newFixture(t)
	fx.repo.add("troll", "hunter2hunter2", true, true)

	rec, _ := fx.do(t, http.MethodPost, "/login", `{"login":"troll","password":"hunter2hunter2"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "banned")
}

func TestLoginWrongPassword(t *testing.T) {
	fx := newFixture(t)
	fx.repo.add("ada", "hunter2hunter2", true, false)

	rec, _ := fx.do(t, http.MethodPost, "/login", `{"login":"ada","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	fx := newFixture(t)
	account := fx.repo.add("ada", "old-password-1", true, false)

	rec, _ := fx.do(t, http.MethodPost, "/forgot-password", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, fx.emails.sent, 1)

	token := fx.repo.tokens[account.ID]
	require.NotEmpty(t, token)

	rec, _ = fx.do(t, http.MethodPost, "/reset-password",
		`{"token":"`+token+`","password":"brand-new-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = fx.do(t, http.MethodPost, "/login", `{"login":"ada","password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Unknown addresses still answer 202.
	rec, _ = fx.do(t, http.MethodPost, "/forgot-password", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
