package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/plan"
)

const testToken = "tok-1"

// fakeAPI 模拟服务端的一小部分路由
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	accounts map[string]*dto.AccountState
	users    []*dto.AdminUser
	patchErr int
	delay    time.Duration
	conns    []*websocket.Conn

	accountHits atomic.Int32
	listHits    atomic.Int32
	searches    []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, accounts: map[string]*dto.AccountState{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/account", f.account)
	mux.HandleFunc("/api/admin/users", f.listUsers)
	mux.HandleFunc("/api/admin/users/", f.userAction)
	mux.HandleFunc("/api/events", f.events)

	f.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.mu.Lock()
		for _, c := range f.conns {
			_ = c.Close()
		}
		f.mu.Unlock()
		f.server.Close()
	})
	return f
}

func (f *fakeAPI) client(token string) *Client {
	return New(f.server.URL, WithToken(token))
}

func (f *fakeAPI) setAccount(token string, state *dto.AccountState) {
	f.mu.Lock()
	f.accounts[token] = state
	f.mu.Unlock()
}

func (f *fakeAPI) token(r *http.Request) string {
	ck, err := r.Cookie(defaultCookieName)
	if err != nil {
		return ""
	}
	return ck.Value
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) account(w http.ResponseWriter, r *http.Request) {
	f.accountHits.Add(1)
	f.mu.Lock()
	state, ok := f.accounts[f.token(r)]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Não autenticado"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (f *fakeAPI) listUsers(w http.ResponseWriter, r *http.Request) {
	f.listHits.Add(1)
	search := r.URL.Query().Get("search")

	f.mu.Lock()
	f.searches = append(f.searches, search)
	var out []*dto.AdminUser
	for _, u := range f.users {
		if search == "" || strings.Contains(u.Email, search) {
			cp := *u
			out = append(out, &cp)
		}
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, dto.AdminUserList{Users: out, Total: len(out)})
}

func (f *fakeAPI) userAction(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	f.mu.Lock()
	defer f.mu.Unlock()

	var user *dto.AdminUser
	for _, u := range f.users {
		if u.ID == id {
			user = u
		}
	}
	if user == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Usuário não encontrado"})
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, dto.UserDetails{User: user})
	case len(parts) == 2 && parts[1] == "subscription" && r.Method == http.MethodPatch:
		if f.patchErr != 0 {
			writeJSON(w, f.patchErr, map[string]string{"error": "Plano inválido"})
			return
		}
		var req dto.UpdatePlanRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		user.EffectivePlan = plan.Plan(req.Plan)
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
	case len(parts) == 2 && parts[1] == "revoke" && r.Method == http.MethodPost:
		user.EffectivePlan = plan.Free
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
	default:
		http.NotFound(w, r)
	}
}

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func (f *fakeAPI) events(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	_, ok := f.accounts[f.token(r)]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Não autenticado"})
		return
	}

	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
}

func (f *fakeAPI) connCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

// push 向所有连接发送变更通知
func (f *fakeAPI) push() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscription_changed"}`))
	}
}

func accountWith(role model.Role, p plan.Plan, status plan.Status) *dto.AccountState {
	profile := &model.Profile{ID: "u1", Email: "u1@test.com", Role: role}
	sub := &model.Subscription{UserID: "u1", Plan: p, Status: status}
	eff := sub.EffectivePlan()
	return &dto.AccountState{
		Profile:       profile,
		Subscription:  sub,
		EffectivePlan: eff,
		DailyLimit:    plan.PolicyFor(eff).DailyLimit,
	}
}
