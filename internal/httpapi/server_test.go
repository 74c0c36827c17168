package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mircoferri/taskhub/internal/auth"
	"github.com/mircoferri/taskhub/internal/cache"
	"github.com/mircoferri/taskhub/internal/config"
	"github.com/mircoferri/taskhub/internal/directory"
	"github.com/mircoferri/taskhub/internal/hub"
	"github.com/mircoferri/taskhub/internal/identity"
	"github.com/mircoferri/taskhub/internal/observability"
	"github.com/mircoferri/taskhub/internal/tasks"
)

var metricsSeq atomic.Int64

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(fmt.Sprintf("test_httpapi_%d_%d", time.Now().UnixNano(), metricsSeq.Add(1)))
}

type env struct {
	ts  *httptest.Server
	hub *hub.Hub
}

const (
	adminToken  = "admintok"
	workerToken = "usertok"
)

func newEnv(t *testing.T) *env {
	t.Helper()

	cfg := config.Config{
		AllowAnyOrigin: true,
		WSSendBuffer:   16,
		WSWriteTimeout: 5 * time.Second,
		WSReadTimeout:  30 * time.Second,
	}

	idstore := identity.NewMemoryStore()
	idstore.AddUser(auth.User{ID: 1, Username: "boss", IsStaff: true, Groups: []string{auth.GroupAdmin}}, adminToken)
	idstore.AddUser(auth.User{ID: 42, Username: "worker", Groups: []string{auth.GroupUser}}, workerToken)
	idstore.AddUser(auth.User{ID: 2, Username: "colleague", Groups: []string{auth.GroupUser}}, "othertok")

	metrics := testMetrics()
	c := cache.NewMemory()
	h := hub.New()
	dir := directory.New(idstore, c, 30*time.Second, metrics)
	taskSvc := tasks.NewService(tasks.NewMemoryStore(), idstore, c, tasks.NewDispatcher(h, metrics), metrics)
	resolver := auth.NewResolver(idstore)

	srv := New(cfg, resolver, taskSvc, dir, h, metrics)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &env{ts: ts, hub: h}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	return res, raw
}

func createBody() map[string]any {
	return map[string]any{
		"title":       "quarterly report",
		"priority":    "high",
		"due_date":    time.Now().Add(72 * time.Hour).UTC().Format("2006-01-02"),
		"assigned_to": 42,
	}
}

func TestTaskCRUDFlow(t *testing.T) {
	e := newEnv(t)

	res, raw := e.do(t, http.MethodPost, "/api/tasks", adminToken, createBody())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", res.StatusCode, raw)
	}
	var created tasks.Task
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	if created.ID == 0 || created.IsCompleted {
		t.Fatalf("unexpected created task: %+v", created)
	}

	res, raw = e.do(t, http.MethodGet, "/api/tasks", workerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", res.StatusCode)
	}
	var listed []tasks.Task
	if err := json.Unmarshal(raw, &listed); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("worker listing = %+v, want the assigned task", listed)
	}

	path := fmt.Sprintf("/api/tasks/%d", created.ID)
	res, raw = e.do(t, http.MethodPatch, path, workerToken, map[string]any{"is_completed": true})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("worker patch status = %d, body %s", res.StatusCode, raw)
	}

	res, _ = e.do(t, http.MethodPatch, path, workerToken, map[string]any{"is_completed": true, "title": "x"})
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("worker patch with title status = %d, want 403", res.StatusCode)
	}

	res, _ = e.do(t, http.MethodDelete, path, workerToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("worker delete status = %d, want 403", res.StatusCode)
	}
	res, _ = e.do(t, http.MethodDelete, path, adminToken, nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("admin delete status = %d, want 204", res.StatusCode)
	}
	res, _ = e.do(t, http.MethodGet, path, adminToken, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted task status = %d, want 404", res.StatusCode)
	}
}

func TestMutationsRequireAuthentication(t *testing.T) {
	e := newEnv(t)

	res, _ := e.do(t, http.MethodPost, "/api/tasks", "", createBody())
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d, want 401", res.StatusCode)
	}
	res, _ = e.do(t, http.MethodPost, "/api/tasks", "bogus-token", createBody())
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown-token create status = %d, want 401", res.StatusCode)
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	e := newEnv(t)

	res, _ := e.do(t, http.MethodGet, "/api/users", workerToken, nil)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("worker /api/users status = %d, want 403", res.StatusCode)
	}

	res, raw := e.do(t, http.MethodGet, "/api/users", adminToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin /api/users status = %d", res.StatusCode)
	}
	var members []identity.Member
	if err := json.Unmarshal(raw, &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("user listing = %+v, want the two user-role members", members)
	}

	res, raw = e.do(t, http.MethodGet, "/api/admins", workerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("worker /api/admins status = %d, body %s", res.StatusCode, raw)
	}

	res, raw = e.do(t, http.MethodGet, "/api/me", workerToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("/api/me status = %d", res.StatusCode)
	}
	var me map[string]any
	if err := json.Unmarshal(raw, &me); err != nil {
		t.Fatalf("decode /api/me: %v", err)
	}
	if me["username"] != "worker" || me["is_admin"] != false {
		t.Fatalf("/api/me = %v, want worker, is_admin false", me)
	}

	res, _ = e.do(t, http.MethodGet, "/api/me", "", nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous /api/me status = %d, want 401", res.StatusCode)
	}
}

func TestUnknownFilterValuesAreIgnored(t *testing.T) {
	e := newEnv(t)

	res, raw := e.do(t, http.MethodPost, "/api/tasks", adminToken, createBody())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", res.StatusCode, raw)
	}

	res, raw = e.do(t, http.MethodGet, "/api/tasks?due_date=someday&priority=urgent&is_completed=maybe", adminToken, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("filtered list status = %d", res.StatusCode)
	}
	var listed []tasks.Task
	if err := json.Unmarshal(raw, &listed); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listing with unknown filter values = %d tasks, want 1", len(listed))
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		res, _ := e.do(t, http.MethodGet, path, "", nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, res.StatusCode)
		}
	}
}
