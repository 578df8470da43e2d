package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/completion"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/payment"
)

// Hand-written in-memory mocks. They implement the same repository
// interfaces the sqlite package does, so the services under test cannot
// tell the difference.

type mockUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User)}
}

func (m *mockUserRepo) Ensure(_ context.Context, user *model.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return false, nil
	}
	stored := *user
	stored.Credits = 1
	m.users[user.ID] = &stored
	return true, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	result := *u
	return &result, nil
}

func (m *mockUserRepo) Credits(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, nil
	}
	return u.Credits, nil
}

func (m *mockUserRepo) SpendCredit(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Credits < 1 {
		return false, nil
	}
	u.Credits--
	return true, nil
}

func (m *mockUserRepo) GrantCredits(_ context.Context, id int64, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", fmt.Sprint(id))
	}
	u.Credits += amount
	return nil
}

func (m *mockUserRepo) TouchActivity(_ context.Context, id int64) error {
	return nil
}

// setBalance is a test hook for arranging a specific balance.
func (m *mockUserRepo) setBalance(id int64, credits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Credits = credits
		return
	}
	m.users[id] = &model.User{ID: id, Credits: credits}
}

type mockAnalysisRepo struct {
	mu      sync.Mutex
	records []model.Analysis
	nextID  int
}

func (m *mockAnalysisRepo) Create(_ context.Context, a *model.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = fmt.Sprintf("analysis-%d", m.nextID)
	m.records = append(m.records, *a)
	return nil
}

func (m *mockAnalysisRepo) ListByUser(_ context.Context, userID int64, limit int) ([]model.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Analysis
	for _, r := range m.records {
		if r.UserID == userID {
			result = append(result, r)
		}
	}
	return result, nil
}

// mockPaymentRepo mirrors the sqlite store's Complete semantics: the status
// flip and the grant happen under one lock, exactly once per token.
type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
	users    *mockUserRepo
	nextID   int64
}

func newMockPaymentRepo(users *mockUserRepo) *mockPaymentRepo {
	return &mockPaymentRepo{
		payments: make(map[string]*model.Payment),
		users:    users,
	}
}

func (m *mockPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.Token]; ok {
		return apperror.Conflict("payment", p.Token)
	}
	m.nextID++
	p.ID = m.nextID
	stored := *p
	m.payments[p.Token] = &stored
	return nil
}

func (m *mockPaymentRepo) GetByToken(_ context.Context, token string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[token]
	if !ok {
		return nil, apperror.NotFound("payment", token)
	}
	result := *p
	return &result, nil
}

func (m *mockPaymentRepo) ListByStatus(_ context.Context, status string) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Payment
	for _, p := range m.payments {
		if status == "" || p.Status == status {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockPaymentRepo) Complete(ctx context.Context, token string) (*model.Payment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[token]
	if !ok {
		return nil, false, nil
	}
	if p.Status != model.PaymentStatusPending {
		result := *p
		return &result, false, nil
	}
	p.Status = model.PaymentStatusCompleted
	if err := m.users.GrantCredits(ctx, p.UserID, p.CreditsGranted); err != nil {
		p.Status = model.PaymentStatusPending
		return nil, false, err
	}
	result := *p
	return &result, true, nil
}

type mockSupportRepo struct {
	mu       sync.Mutex
	messages []model.SupportMessage
	nextID   int
}

func (m *mockSupportRepo) Create(_ context.Context, msg *model.SupportMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = fmt.Sprintf("support-%d", m.nextID)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockSupportRepo) List(_ context.Context, status string) ([]model.SupportMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.SupportMessage
	for _, msg := range m.messages {
		if status == "" || msg.Status == status {
			result = append(result, msg)
		}
	}
	return result, nil
}

func (m *mockSupportRepo) SetStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Status = status
			return nil
		}
	}
	return apperror.NotFound("support message", id)
}

// mockCompleter counts calls and can run a hook mid-call to provoke races.
type mockCompleter struct {
	result *completion.Result
	err    error
	calls  int
	onCall func()
}

func (m *mockCompleter) Complete(_ context.Context, systemPrompt, userText string) (*completion.Result, error) {
	m.calls++
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockProvider serves a canned checkout URL and operation history.
type mockProvider struct {
	chargeURL  string
	chargeErr  error
	operations []payment.Operation
	listErr    error
}

func (m *mockProvider) CreateCharge(_ context.Context, req payment.ChargeRequest) (string, error) {
	if m.chargeErr != nil {
		return "", m.chargeErr
	}
	return m.chargeURL, nil
}

func (m *mockProvider) ListOperations(_ context.Context, label string) ([]payment.Operation, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if label == "" {
		return m.operations, nil
	}
	var result []payment.Operation
	for _, op := range m.operations {
		if op.Label == label {
			result = append(result, op)
		}
	}
	return result, nil
}

// catalogStub satisfies RoleCatalog and TariffCatalog with fixed entries.
type catalogStub struct{}

func (catalogStub) RoleByKey(key string) (model.Role, bool) {
	roles := map[string]model.Role{
		"proofreader": {Key: "proofreader", Name: "Proofreader", Prompt: "You are a proofreader."},
		"editor":      {Key: "editor", Name: "Editor", Prompt: "You are an editor."},
	}
	r, ok := roles[key]
	return r, ok
}

func (catalogStub) TariffByKey(key string) (model.Tariff, bool) {
	tariffs := map[string]model.Tariff{
		"one": {Key: "one", Price: 99, Credits: 1, Label: "1 analysis — 99₽"},
		"ten": {Key: "ten", Price: 699, Credits: 10, Label: "10 analyses — 699₽"},
	}
	t, ok := tariffs[key]
	return t, ok
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
