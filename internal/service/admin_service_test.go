package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/betfaro_server/internal/model"
	"github.com/qs3c/betfaro_server/internal/model/dto"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/testutil"
)

func setupAdminService(t *testing.T) (*AdminService, *repos, *fakeNotifier) {
	t.Helper()
	r := setupRepos(t)
	n := &fakeNotifier{}
	return NewAdminService(r.profile, r.sub, r.chat, r.audit, n, nil), r, n
}

func intPtr(v int) *int { return &v }

func TestAdminService_ListUsers(t *testing.T) {
	svc, r, _ := setupAdminService(t)
	ctx := context.Background()

	u1 := testutil.TestProfile(t, r.db, testutil.WithEmail("ana@betfaro.com"))
	testutil.TestSubscription(t, r.db, u1.ID, testutil.WithPlan(plan.Elite, plan.StatusActive))
	testutil.TestProfile(t, r.db, testutil.WithEmail("bruno@gmail.com"))

	t.Run("all users with flattened subscription", func(t *testing.T) {
		list, err := svc.ListUsers(ctx, "")
		require.NoError(t, err)
		require.Equal(t, 2, list.Total)

		byEmail := map[string]*dto.AdminUser{}
		for _, u := range list.Users {
			byEmail[u.Email] = u
		}
		assert.NotNil(t, byEmail["ana@betfaro.com"].Subscription)
		assert.Equal(t, plan.Elite, byEmail["ana@betfaro.com"].EffectivePlan)
		assert.Nil(t, byEmail["bruno@gmail.com"].Subscription)
		assert.Equal(t, plan.Free, byEmail["bruno@gmail.com"].EffectivePlan)
	})

	t.Run("search filters server side", func(t *testing.T) {
		list, err := svc.ListUsers(ctx, "betfaro")
		require.NoError(t, err)
		require.Len(t, list.Users, 1)
		assert.Equal(t, u1.ID, list.Users[0].ID)
	})

	t.Run("no match is an empty list", func(t *testing.T) {
		list, err := svc.ListUsers(ctx, "zzz-nobody")
		require.NoError(t, err)
		assert.NotNil(t, list.Users)
		assert.Empty(t, list.Users)
		assert.Zero(t, list.Total)
	})
}

func TestAdminService_UpdatePlan(t *testing.T) {
	svc, r, n := setupAdminService(t)
	ctx := context.Background()
	admin := testutil.TestProfile(t, r.db, testutil.AsAdmin())

	t.Run("creates manual grant", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)

		updated, err := svc.UpdatePlan(ctx, admin.ID, user.ID, "elite", intPtr(30))
		require.NoError(t, err)
		require.NotNil(t, updated.Subscription)
		assert.Equal(t, plan.Elite, updated.Subscription.Plan)
		assert.Equal(t, plan.StatusActive, updated.Subscription.Status)
		assert.Equal(t, plan.ProviderManual, updated.Subscription.Provider)
		assert.Equal(t, plan.Elite, updated.EffectivePlan)
		require.NotNil(t, updated.Subscription.CurrentPeriodEnd)
		assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *updated.Subscription.CurrentPeriodEnd, time.Minute)

		logs, err := r.audit.ListRecent(ctx, user.ID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, model.AuditPlanUpdated, logs[0].Action)
		require.NotNil(t, logs[0].ActorID)
		assert.Equal(t, admin.ID, *logs[0].ActorID)

		var details map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(logs[0].Details), &details))
		assert.Equal(t, "free", details["from"])
		assert.Equal(t, "elite", details["to"])

		assert.Contains(t, n.kinds(), pubsub.KindPlanUpdated)
	})

	t.Run("keeps stripe references", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		testutil.TestSubscription(t, r.db, user.ID, testutil.WithStripeCustomer("cus_keep"))

		updated, err := svc.UpdatePlan(ctx, admin.ID, user.ID, "pro", nil)
		require.NoError(t, err)
		require.NotNil(t, updated.Subscription.StripeCustomerID)
		assert.Equal(t, "cus_keep", *updated.Subscription.StripeCustomerID)
		assert.Nil(t, updated.Subscription.CurrentPeriodEnd)
	})

	t.Run("reflected in next listing", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db, testutil.WithEmail("roundtrip@betfaro.com"))

		_, err := svc.UpdatePlan(ctx, admin.ID, user.ID, "pro", nil)
		require.NoError(t, err)

		list, err := svc.ListUsers(ctx, "roundtrip@")
		require.NoError(t, err)
		require.Len(t, list.Users, 1)
		assert.Equal(t, plan.Pro, list.Users[0].EffectivePlan)
	})

	t.Run("rejects unknown plan", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		for _, p := range []string{"plus", "plug", "", "ELITE"} {
			_, err := svc.UpdatePlan(ctx, admin.ID, user.ID, p, nil)
			assert.ErrorIs(t, err, ErrInvalidPlan, p)
		}
	})

	t.Run("rejects non positive days", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		_, err := svc.UpdatePlan(ctx, admin.ID, user.ID, "pro", intPtr(0))
		assert.ErrorIs(t, err, ErrInvalidDays)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdatePlan(ctx, admin.ID, "missing", "pro", nil)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestAdminService_UpdatePlan_NotifierFailureIgnored(t *testing.T) {
	svc, r, n := setupAdminService(t)
	n.err = assert.AnError
	user := testutil.TestProfile(t, r.db)

	updated, err := svc.UpdatePlan(context.Background(), "admin", user.ID, "pro", nil)
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, updated.EffectivePlan)
}

func TestAdminService_Revoke(t *testing.T) {
	svc, r, n := setupAdminService(t)
	ctx := context.Background()

	t.Run("cancels active subscription", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		testutil.TestSubscription(t, r.db, user.ID, testutil.WithPlan(plan.Elite, plan.StatusActive))

		updated, err := svc.Revoke(ctx, "admin", user.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.StatusCanceled, updated.Subscription.Status)
		assert.Equal(t, plan.Free, updated.EffectivePlan)

		// 记录保留
		var count int64
		r.db.Model(&model.Subscription{}).Where("user_id = ?", user.ID).Count(&count)
		assert.Equal(t, int64(1), count)
		assert.Contains(t, n.kinds(), pubsub.KindRevoked)
	})

	t.Run("no subscription", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		_, err := svc.Revoke(ctx, "admin", user.ID)
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})

	t.Run("already canceled", func(t *testing.T) {
		user := testutil.TestProfile(t, r.db)
		testutil.TestSubscription(t, r.db, user.ID, testutil.WithPlan(plan.Pro, plan.StatusCanceled))
		_, err := svc.Revoke(ctx, "admin", user.ID)
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})
}

func TestAdminService_GetUserDetails(t *testing.T) {
	svc, r, _ := setupAdminService(t)
	ctx := context.Background()

	user := testutil.TestProfile(t, r.db)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		testutil.TestChatMessage(t, r.db, user.ID, model.ChatRoleUser, "curta", base.Add(time.Duration(i)*time.Second))
	}
	long := strings.Repeat("á", 150)
	testutil.TestChatMessage(t, r.db, user.ID, model.ChatRoleAssistant, long, base.Add(time.Minute))

	details, err := svc.GetUserDetails(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, details.User.ID)
	require.Len(t, details.RecentChats, 20)

	last := details.RecentChats[len(details.RecentChats)-1]
	assert.Equal(t, strings.Repeat("á", 100)+"...", last.Content)
	assert.Equal(t, "curta", details.RecentChats[0].Content)

	_, err = svc.GetUserDetails(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminService_ExpireManualGrants(t *testing.T) {
	svc, r, n := setupAdminService(t)
	ctx := context.Background()

	expired := testutil.TestProfile(t, r.db)
	testutil.TestSubscription(t, r.db, expired.ID,
		testutil.WithPlan(plan.Elite, plan.StatusActive),
		testutil.WithPeriodEnd(time.Now().Add(-time.Hour)))

	valid := testutil.TestProfile(t, r.db)
	testutil.TestSubscription(t, r.db, valid.ID,
		testutil.WithPlan(plan.Pro, plan.StatusActive),
		testutil.WithPeriodEnd(time.Now().Add(time.Hour)))

	t.Run("dry run changes nothing", func(t *testing.T) {
		ids, err := svc.ExpireManualGrants(ctx, true)
		require.NoError(t, err)
		assert.Equal(t, []string{expired.ID}, ids)

		sub, _ := r.sub.GetByUserID(ctx, expired.ID)
		assert.Equal(t, plan.StatusActive, sub.Status)
		assert.Empty(t, n.kinds())
	})

	t.Run("cancels expired grants", func(t *testing.T) {
		ids, err := svc.ExpireManualGrants(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, []string{expired.ID}, ids)

		sub, _ := r.sub.GetByUserID(ctx, expired.ID)
		assert.Equal(t, plan.StatusCanceled, sub.Status)

		other, _ := r.sub.GetByUserID(ctx, valid.ID)
		assert.Equal(t, plan.StatusActive, other.Status)

		logs, _ := r.audit.ListRecent(ctx, expired.ID, 1)
		require.Len(t, logs, 1)
		assert.Equal(t, model.AuditExpired, logs[0].Action)
		assert.Nil(t, logs[0].ActorID)
		assert.Equal(t, []string{pubsub.KindExpired}, n.kinds())
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		ids, err := svc.ExpireManualGrants(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
