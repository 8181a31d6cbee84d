package tasks

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aliuyar1234/taskhub/internal/auth"
	"github.com/aliuyar1234/taskhub/internal/orgs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, _ := uuid.Parse(req.Header.Get("X-Test-User"))
			next.ServeHTTP(w, req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID})))
		})
	})
	r.Get("/api/tasks", HandleList(svc))
	r.Post("/api/tasks", HandleCreate(svc))
	r.Get("/api/tasks/{task_id}", HandleGet(svc))
	r.Patch("/api/tasks/{task_id}", HandleUpdate(svc))
	r.Delete("/api/tasks/{task_id}", HandleDelete(svc))
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, userID, orgID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", userID.String())
	if orgID != uuid.Nil {
		req.Header.Set(orgs.OrgHeader, orgID.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type taskEnvelope struct {
	Data struct {
		ID               uuid.UUID  `json:"id"`
		Title            string     `json:"title"`
		Status           string     `json:"status"`
		Description      *string    `json:"description"`
		AssignedToUserID *uuid.UUID `json:"assignedToUserId"`
	} `json:"data"`
}

func TestTaskHandlers(t *testing.T) {
	env := newTaskEnv(t)
	h := newTestRouter(env.svc)

	rec := doRequest(t, h, http.MethodPost, "/api/tasks", env.member.ID, env.acme.ID,
		`{"title":"Fix leak","description":"pipe in hall"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created taskEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Fix leak", created.Data.Title)
	assert.Equal(t, "TODO", created.Data.Status)
	taskPath := "/api/tasks/" + created.Data.ID.String()

	rec = doRequest(t, h, http.MethodPatch, taskPath, env.owner.ID, env.acme.ID,
		`{"assignedToUserId":"`+env.member.ID.String()+`","description":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated taskEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Nil(t, updated.Data.Description)
	require.NotNil(t, updated.Data.AssignedToUserID)
	assert.Equal(t, env.member.ID, *updated.Data.AssignedToUserID)

	rec = doRequest(t, h, http.MethodGet, "/api/tasks", env.viewer.ID, env.acme.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)

	rec = doRequest(t, h, http.MethodDelete, taskPath, env.viewer.ID, env.acme.ID, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, taskPath, env.admin.ID, env.acme.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = doRequest(t, h, http.MethodGet, taskPath, env.admin.ID, env.acme.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandlers_Errors(t *testing.T) {
	env := newTaskEnv(t)
	h := newTestRouter(env.svc)
	task := env.create(t, env.member.ID, "existing")
	taskPath := "/api/tasks/" + task.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		user   uuid.UUID
		org    uuid.UUID
		body   string
		want   int
	}{
		{"missing org header", http.MethodGet, "/api/tasks", env.member.ID, uuid.Nil, "", http.StatusBadRequest},
		{"non-member", http.MethodGet, "/api/tasks", env.outsider.ID, env.acme.ID, "", http.StatusForbidden},
		{"malformed task id", http.MethodGet, "/api/tasks/nope", env.member.ID, env.acme.ID, "", http.StatusBadRequest},
		{"cross-org task", http.MethodGet, taskPath, env.outsider.ID, env.globex.ID, "", http.StatusNotFound},
		{"empty body", http.MethodPost, "/api/tasks", env.member.ID, env.acme.ID, "", http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/tasks", env.member.ID, env.acme.ID, `{"description":"x"}`, http.StatusBadRequest},
		{"bad status", http.MethodPatch, taskPath, env.member.ID, env.acme.ID, `{"status":"BLOCKED"}`, http.StatusBadRequest},
		{"bad assignee", http.MethodPatch, taskPath, env.member.ID, env.acme.ID, `{"assignedToUserId":"nope"}`, http.StatusBadRequest},
		{"not creator", http.MethodPatch, taskPath, env.other.ID, env.acme.ID, `{"title":"mine now"}`, http.StatusForbidden},
		{"manager delete", http.MethodDelete, taskPath, env.manager.ID, env.acme.ID, "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.path, tt.user, tt.org, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}
