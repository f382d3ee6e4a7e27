package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/plan"
)

func seedUsers(api *fakeAPI) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.users = []*dto.AdminUser{
		{ID: "u1", Email: "ana@test.com", Role: model.RoleUser, EffectivePlan: plan.Free},
		{ID: "u2", Email: "bruno@test.com", Role: model.RoleUser, EffectivePlan: plan.Pro},
	}
}

func startPanel(t *testing.T, api *fakeAPI, interval time.Duration) *AdminPanel {
	p := NewAdminPanel(api.client(testToken), interval, nil)
	p.reconnectDelay = 20 * time.Millisecond
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(p.Stop)
	require.Eventually(t, func() bool { return len(p.Users()) > 0 }, 2*time.Second, 10*time.Millisecond)
	return p
}

func TestAdminPanel_RejectsNonAdmin(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleUser, plan.Elite, plan.StatusActive))

	p := NewAdminPanel(api.client(testToken), time.Hour, nil)
	err := p.Start(context.Background())
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int32(0), api.listHits.Load())
}

func TestAdminPanel_RejectsAnonymous(t *testing.T) {
	api := newFakeAPI(t)

	p := NewAdminPanel(api.client(""), time.Hour, nil)
	assert.ErrorIs(t, p.Start(context.Background()), ErrUnauthorized)
}

func TestAdminPanel_LoadsAndSearches(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, time.Hour)
	assert.Len(t, p.Users(), 2)
	assert.Equal(t, 2, p.Total())
	assert.NoError(t, p.Err())

	p.SetSearch("bruno")
	require.Eventually(t, func() bool { return p.Total() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "u2", p.Users()[0].ID)

	api.mu.Lock()
	last := api.searches[len(api.searches)-1]
	api.mu.Unlock()
	assert.Equal(t, "bruno", last)
}

func TestAdminPanel_PollingRefreshes(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, 30*time.Millisecond)
	require.Eventually(t, func() bool { return p.Refreshes() >= 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestAdminPanel_PushTriggersRefresh(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, time.Hour)
	require.Eventually(t, func() bool { return api.connCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	before := p.Refreshes()

	api.mu.Lock()
	api.users = append(api.users, &dto.AdminUser{ID: "u3", Email: "caio@test.com", EffectivePlan: plan.Free})
	api.mu.Unlock()
	api.push()

	require.Eventually(t, func() bool { return p.Total() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Greater(t, p.Refreshes(), before)
}

func TestAdminPanel_TriggersCoalesce(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, time.Hour)
	require.Eventually(t, func() bool { return p.Refreshes() >= 1 }, time.Second, 5*time.Millisecond)
	before := api.listHits.Load()

	for i := 0; i < 50; i++ {
		p.Trigger()
	}
	time.Sleep(150 * time.Millisecond)

	// 一次正在执行加上至多一次排队
	assert.LessOrEqual(t, api.listHits.Load()-before, int32(2))
	assert.GreaterOrEqual(t, api.listHits.Load()-before, int32(1))
}

func TestAdminPanel_UpdatePlanAppliesAck(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, time.Hour)
	_, err := p.Select(context.Background(), "u1")
	require.NoError(t, err)

	days := 30
	user, err := p.UpdatePlan(context.Background(), "u1", "elite", &days)
	require.NoError(t, err)
	assert.Equal(t, plan.Elite, user.EffectivePlan)
	assert.Equal(t, plan.Elite, p.Selected().User.EffectivePlan)

	for _, u := range p.Users() {
		if u.ID == "u1" {
			assert.Equal(t, plan.Elite, u.EffectivePlan)
		}
	}
}

func TestAdminPanel_UpdatePlanFailureLeavesListUntouched(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)
	api.mu.Lock()
	api.patchErr = http.StatusBadRequest
	api.mu.Unlock()

	p := startPanel(t, api, time.Hour)

	_, err := p.UpdatePlan(context.Background(), "u1", "plus", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	for _, u := range p.Users() {
		if u.ID == "u1" {
			assert.Equal(t, plan.Free, u.EffectivePlan)
		}
	}
}

func TestAdminPanel_Revoke(t *testing.T) {
	api := newFakeAPI(t)
	api.setAccount(testToken, accountWith(model.RoleAdmin, plan.Free, plan.StatusActive))
	seedUsers(api)

	p := startPanel(t, api, time.Hour)

	user, err := p.Revoke(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, plan.Free, user.EffectivePlan)

	_, err = p.Revoke(context.Background(), "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
