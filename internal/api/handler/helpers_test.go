package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/pkg/backend"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/pkg/queue"
	"github.com/qs3c/betfaro_server/internal/pkg/response"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/service"
	"github.com/qs3c/betfaro_server/internal/session"
	"github.com/qs3c/betfaro_server/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWebhookSecret = "whsec_handler_test"

// testEnv 真实服务 + sqlite + miniredis，外部依赖替换为 httptest 或 fake
type testEnv struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Queue    *queue.Queue
	Notifier *recordingNotifier
	Gateway  *stubGateway
	Upstream *httptest.Server

	Account *service.SubscriptionService
	Quota   *service.QuotaService
	Admin   *service.AdminService
	Billing *service.BillingService
	Picks   *service.PicksService
	Chat    *service.ChatService
}

func setupEnv(t *testing.T, upstream http.HandlerFunc) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	rdb, _ := testutil.SetupTestRedis(t)

	if upstream == nil {
		upstream = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
	}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	profileRepo := repository.NewProfileRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	chatRepo := repository.NewChatRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cfg := &config.Config{
		Stripe: config.StripeConfig{PricePro: "price_pro", PriceElite: "price_elite", WebhookSecret: testWebhookSecret},
		App:    config.AppConfig{BaseURL: "https://betfaro.app"},
	}

	env := &testEnv{
		DB:       db,
		Redis:    rdb,
		Queue:    queue.NewQueue(rdb, "payment_events"),
		Notifier: &recordingNotifier{},
		Gateway:  &stubGateway{},
		Upstream: srv,
	}

	client := backend.NewClient(srv.URL, "internal-key", 2*time.Second)
	env.Account = service.NewSubscriptionService(profileRepo, subRepo)
	env.Quota = service.NewQuotaService(rdb)
	env.Admin = service.NewAdminService(profileRepo, subRepo, chatRepo, auditRepo, env.Notifier, nil)
	env.Billing = service.NewBillingService(profileRepo, subRepo, env.Gateway, env.Notifier, cfg, nil)
	env.Picks = service.NewPicksService(client)
	env.Chat = service.NewChatService(chatRepo, env.Account, env.Quota, client, nil)

	return env
}

func mockSession(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.Set(c, &session.Session{UserID: userID, Email: userID + "@example.com"})
		c.Next()
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// mustField 返回顶层字段的原始 JSON
func mustField(t *testing.T, w *httptest.ResponseRecorder, key string) string {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fields))
	raw, ok := fields[key]
	require.True(t, ok, "missing field %q", key)
	return string(raw)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []*pubsub.ChangeMessage
}

func (n *recordingNotifier) PublishChange(_ context.Context, msg *pubsub.ChangeMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

type stubGateway struct {
	mu        sync.Mutex
	customers int
}

func (g *stubGateway) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers++
	return fmt.Sprintf("cus_%d", g.customers), nil
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, p *payment.CheckoutParams) (string, error) {
	return "https://checkout.stripe.com/c/pay/" + p.PriceID, nil
}

func (g *stubGateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.com/p/session/" + customerID, nil
}
