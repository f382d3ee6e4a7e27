package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/qs3c/betfaro_server/internal/pkg/backend"
	"github.com/qs3c/betfaro_server/internal/pkg/payment"
	"github.com/qs3c/betfaro_server/internal/pkg/pubsub"
	"github.com/qs3c/betfaro_server/internal/repository"
	"github.com/qs3c/betfaro_server/internal/testutil"
)

type repos struct {
	db      *gorm.DB
	profile *repository.ProfileRepository
	sub     *repository.SubscriptionRepository
	chat    *repository.ChatRepository
	audit   *repository.AuditRepository
}

func setupRepos(t *testing.T) *repos {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	return &repos{
		db:      db,
		profile: repository.NewProfileRepository(db),
		sub:     repository.NewSubscriptionRepository(db),
		chat:    repository.NewChatRepository(db),
		audit:   repository.NewAuditRepository(db),
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	client, _ := testutil.SetupTestRedis(t)
	return client
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []*pubsub.ChangeMessage
	err  error
}

func (f *fakeNotifier) PublishChange(_ context.Context, msg *pubsub.ChangeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return f.err
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.msgs))
	for _, m := range f.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type fakeGateway struct {
	mu            sync.Mutex
	customers     int
	lastCheckout  *payment.CheckoutParams
	lastReturnURL string
	customerErr   error
	checkoutErr   error
}

func (f *fakeGateway) CreateCustomer(_ context.Context, email, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.customers++
	return fmt.Sprintf("cus_%d", f.customers), nil
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, p *payment.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	f.lastCheckout = p
	return "https://checkout.stripe.com/c/pay/" + p.CustomerID, nil
}

func (f *fakeGateway) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastReturnURL = returnURL
	return "https://billing.stripe.com/p/session/" + customerID, nil
}

type fakeBackend struct {
	picks    json.RawMessage
	reply    string
	err      error
	lastPick struct {
		rangeParam string
		refresh    bool
	}
	lastChat *backend.ChatRequest
}

func (f *fakeBackend) GetPicks(_ context.Context, rangeParam string, refresh bool) (json.RawMessage, error) {
	f.lastPick.rangeParam = rangeParam
	f.lastPick.refresh = refresh
	return f.picks, f.err
}

func (f *fakeBackend) Chat(_ context.Context, in *backend.ChatRequest) (*backend.ChatResponse, error) {
	f.lastChat = in
	if f.err != nil {
		return nil, f.err
	}
	return &backend.ChatResponse{Response: f.reply}, nil
}
