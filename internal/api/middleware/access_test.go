package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/service"
	"github.com/qs3c/betfaro_server/internal/session"
	"github.com/qs3c/betfaro_server/internal/testutil"
)

func setupAccountService(t *testing.T) (*service.SubscriptionService, *gorm.DB) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	return service.NewSubscriptionService(repository.NewProfileRepository(db), repository.NewSubscriptionRepository(db)), db
}

func mockSession(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.Set(c, &session.Session{UserID: userID})
		c.Next()
	}
}

func serve(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAdmin(t *testing.T) {
	account, db := setupAccountService(t)
	admin := testutil.TestProfile(t, db, testutil.AsAdmin())
	user := testutil.TestProfile(t, db)

	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"admin passes", admin.ID, http.StatusOK},
		{"regular user forbidden", user.ID, http.StatusForbidden},
		{"unknown profile forbidden", "ghost", http.StatusForbidden},
		{"no session", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			if tt.userID != "" {
				router.Use(mockSession(tt.userID))
			}
			router.Use(RequireAdmin(account))
			router.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })

			assert.Equal(t, tt.want, serve(router, "/admin").Code)
		})
	}
}

func TestRequirePlan_Elite(t *testing.T) {
	account, db := setupAccountService(t)

	elite := testutil.TestProfile(t, db)
	testutil.TestSubscription(t, db, elite.ID, testutil.WithPlan(plan.Elite, plan.StatusActive))
	pro := testutil.TestProfile(t, db)
	testutil.TestSubscription(t, db, pro.ID, testutil.WithPlan(plan.Pro, plan.StatusActive))
	lapsed := testutil.TestProfile(t, db)
	testutil.TestSubscription(t, db, lapsed.ID, testutil.WithPlan(plan.Elite, plan.StatusPastDue))
	free := testutil.TestProfile(t, db)

	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"active elite", elite.ID, http.StatusOK},
		{"pro", pro.ID, http.StatusForbidden},
		{"past due elite", lapsed.ID, http.StatusForbidden},
		{"no subscription", free.ID, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(mockSession(tt.userID), RequirePlan(account, plan.Elite))
			router.GET("/picks", func(c *gin.Context) {
				assert.Equal(t, plan.Elite, c.MustGet(EffectivePlanKey))
				c.Status(http.StatusOK)
			})

			assert.Equal(t, tt.want, serve(router, "/picks").Code)
		})
	}
}
