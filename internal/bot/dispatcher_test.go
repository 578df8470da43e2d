package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/completion"
	"github.com/sakif/editorial-bot/internal/gate"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/payment"
	"github.com/sakif/editorial-bot/internal/service"
	"github.com/sakif/editorial-bot/internal/session"
)

// The dispatcher is wired with real services over in-memory fakes, so these
// tests exercise the whole conversational flow below the HTTP layer.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func (f *fakeUserRepo) Ensure(_ context.Context, user *model.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; ok {
		return false, nil
	}
	stored := *user
	stored.Credits = 1
	f.users[user.ID] = &stored
	return true, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", fmt.Sprint(id))
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) Credits(_ context.Context, id int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u.Credits, nil
	}
	return 0, nil
}

func (f *fakeUserRepo) SpendCredit(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Credits < 1 {
		return false, nil
	}
	u.Credits--
	return true, nil
}

func (f *fakeUserRepo) GrantCredits(_ context.Context, id int64, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", fmt.Sprint(id))
	}
	u.Credits += amount
	return nil
}

func (f *fakeUserRepo) TouchActivity(_ context.Context, id int64) error { return nil }

type fakeAnalysisRepo struct {
	mu      sync.Mutex
	records []model.Analysis
}

func (f *fakeAnalysisRepo) Create(_ context.Context, a *model.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = fmt.Sprintf("a-%d", len(f.records)+1)
	f.records = append(f.records, *a)
	return nil
}

func (f *fakeAnalysisRepo) ListByUser(_ context.Context, userID int64, limit int) ([]model.Analysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Analysis
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment
	users    *fakeUserRepo
}

func (f *fakePaymentRepo) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.Token]; ok {
		return apperror.Conflict("payment", p.Token)
	}
	p.ID = int64(len(f.payments) + 1)
	stored := *p
	f.payments[p.Token] = &stored
	return nil
}

func (f *fakePaymentRepo) GetByToken(_ context.Context, token string) (*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[token]
	if !ok {
		return nil, apperror.NotFound("payment", token)
	}
	result := *p
	return &result, nil
}

func (f *fakePaymentRepo) ListByStatus(_ context.Context, status string) ([]model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payment
	for _, p := range f.payments {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) Complete(ctx context.Context, token string) (*model.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[token]
	if !ok {
		return nil, false, nil
	}
	if p.Status != model.PaymentStatusPending {
		result := *p
		return &result, false, nil
	}
	p.Status = model.PaymentStatusCompleted
	if err := f.users.GrantCredits(ctx, p.UserID, p.CreditsGranted); err != nil {
		p.Status = model.PaymentStatusPending
		return nil, false, err
	}
	result := *p
	return &result, true, nil
}

type fakeSupportRepo struct {
	mu       sync.Mutex
	messages []model.SupportMessage
}

func (f *fakeSupportRepo) Create(_ context.Context, m *model.SupportMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = fmt.Sprintf("s-%d", len(f.messages)+1)
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeSupportRepo) List(_ context.Context, status string) ([]model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SupportMessage
	for _, m := range f.messages {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSupportRepo) SetStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages[i].Status = status
			return nil
		}
	}
	return apperror.NotFound("support message", id)
}

type fakeCompleter struct {
	result *completion.Result
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userText string) (*completion.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeProvider struct {
	chargeURL  string
	operations []payment.Operation
}

func (f *fakeProvider) CreateCharge(_ context.Context, req payment.ChargeRequest) (string, error) {
	return f.chargeURL, nil
}

func (f *fakeProvider) ListOperations(_ context.Context, label string) ([]payment.Operation, error) {
	if label == "" {
		return f.operations, nil
	}
	var out []payment.Operation
	for _, op := range f.operations {
		if op.Label == label {
			out = append(out, op)
		}
	}
	return out, nil
}

type catalogStub struct{}

func (catalogStub) RoleByKey(key string) (model.Role, bool) {
	for _, r := range testRoles() {
		if r.Key == key {
			return r, true
		}
	}
	return model.Role{}, false
}

func (catalogStub) TariffByKey(key string) (model.Tariff, bool) {
	for _, t := range testTariffs() {
		if t.Key == key {
			return t, true
		}
	}
	return model.Tariff{}, false
}

func testRoles() []model.Role {
	return []model.Role{
		{Key: "proofreader", Name: "Proofreader", Prompt: "You are a proofreader."},
		{Key: "editor", Name: "Editor", Prompt: "You are an editor."},
	}
}

func testTariffs() []model.Tariff {
	return []model.Tariff{
		{Key: "one", Price: 99, Credits: 1, Label: "1 analysis — 99₽"},
		{Key: "ten", Price: 699, Credits: 10, Label: "10 analyses — 699₽"},
	}
}

type fixture struct {
	dispatcher *Dispatcher
	sessions   session.Store
	users      *fakeUserRepo
	completer  *fakeCompleter
	provider   *fakeProvider
	support    *fakeSupportRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	users := &fakeUserRepo{users: make(map[int64]*model.User)}
	analyses := &fakeAnalysisRepo{}
	paymentsRepo := &fakePaymentRepo{payments: make(map[string]*model.Payment), users: users}
	supportRepo := &fakeSupportRepo{}
	completer := &fakeCompleter{result: &completion.Result{Text: "A solid draft.", TokensUsed: 50}}
	provider := &fakeProvider{chargeURL: "https://pay.example/x"}
	sessions := session.NewMemoryStore()

	userSvc := service.NewUserService(users, logger)
	analysisSvc := service.NewAnalysisService(users, analyses, gate.New(1000, 100000, logger), completer, catalogStub{}, logger)
	paymentSvc := service.NewPaymentService(paymentsRepo, provider, catalogStub{}, "edbot", "wallet-1", logger)
	supportSvc := service.NewSupportService(supportRepo, logger)

	d := NewDispatcher(sessions, userSvc, analysisSvc, paymentSvc, supportSvc,
		testRoles(), testTariffs(), 4096, logger)

	return &fixture{
		dispatcher: d,
		sessions:   sessions,
		users:      users,
		completer:  completer,
		provider:   provider,
		support:    supportRepo,
	}
}

func mustState(t *testing.T, f *fixture, userID int64, want session.State) {
	t.Helper()
	sess, err := f.sessions.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("session Get() error = %v", err)
	}
	if sess.State != want {
		t.Fatalf("session state = %q, want %q", sess.State, want)
	}
}

func TestDispatcher_StartResetsToMainMenu(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_ = f.sessions.Put(ctx, 1, session.Session{State: session.StateAwaitingText, SelectedRole: "editor"})

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 1, Text: "/start"})
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if len(replies) != 1 || replies[0].Kind != ReplyMenu {
		t.Errorf("replies = %+v, want one menu reply", replies)
	}
	mustState(t, f, 1, session.StateMainMenu)
}

// Scenario: in ROLE_SELECTION, "back" returns to the main menu; free text in
// MAIN_MENU that matches no label yields an unrecognized marker and leaves
// the state alone.
func TestDispatcher_BackAndUnrecognized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 1, Callback: "roles"}); err != nil {
		t.Fatalf("roles event error = %v", err)
	}
	mustState(t, f, 1, session.StateRoleSelection)

	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 1, Callback: "back"}); err != nil {
		t.Fatalf("back event error = %v", err)
	}
	mustState(t, f, 1, session.StateMainMenu)

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 1, Text: "what is this thing"})
	if err != nil {
		t.Fatalf("free text event error = %v", err)
	}
	if len(replies) != 1 || replies[0].Kind != ReplyUnrecognized {
		t.Errorf("replies = %+v, want a single unrecognized marker", replies)
	}
	mustState(t, f, 1, session.StateMainMenu)
}

func TestDispatcher_FullAnalysisFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First contact creates the user with the signup credit.
	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 7, Username: "writer", Text: "/start"}); err != nil {
		t.Fatalf("start error = %v", err)
	}

	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 7, Callback: "roles"}); err != nil {
		t.Fatalf("roles error = %v", err)
	}
	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 7, Callback: "role_proofreader"}); err != nil {
		t.Fatalf("pick role error = %v", err)
	}
	mustState(t, f, 7, session.StateAwaitingText)

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 7, Text: "Please check this paragraph."})
	if err != nil {
		t.Fatalf("analysis error = %v", err)
	}

	if f.completer.calls != 1 {
		t.Errorf("completion calls = %d, want 1", f.completer.calls)
	}
	if len(replies) < 2 {
		t.Fatalf("replies = %d, want result plus menu", len(replies))
	}
	if replies[0].Text != "A solid draft." {
		t.Errorf("first reply = %q, want the analysis text", replies[0].Text)
	}
	last := replies[len(replies)-1]
	if last.Kind != ReplyMenu {
		t.Errorf("last reply kind = %q, want menu", last.Kind)
	}

	balance, _ := f.users.Credits(ctx, 7)
	if balance != 0 {
		t.Errorf("balance = %d, want 0 after the analysis", balance)
	}
	mustState(t, f, 7, session.StateMainMenu)
}

func TestDispatcher_LostRoleReprompts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A session that is awaiting text but has no role, as after a partial
	// restore.
	_ = f.sessions.Put(ctx, 3, session.Session{State: session.StateAwaitingText})

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 3, Text: "analyze this"})
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if f.completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0", f.completer.calls)
	}
	if len(replies) != 2 {
		t.Fatalf("replies = %d, want apology plus role menu", len(replies))
	}
	mustState(t, f, 3, session.StateRoleSelection)
}

func TestDispatcher_InsufficientCreditsOffersTariffs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Register, drain the signup credit directly.
	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 5, Text: "/start"}); err != nil {
		t.Fatalf("start error = %v", err)
	}
	if _, err := f.users.SpendCredit(ctx, 5); err != nil {
		t.Fatalf("spend error = %v", err)
	}

	_ = f.sessions.Put(ctx, 5, session.Session{State: session.StateAwaitingText, SelectedRole: "editor"})

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 5, Text: "one more please"})
	if err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if f.completer.calls != 0 {
		t.Errorf("completion calls = %d, want 0 on empty balance", f.completer.calls)
	}
	if len(replies) != 1 || replies[0].Kind != ReplyMenu || len(replies[0].Options) == 0 {
		t.Errorf("replies = %+v, want a tariff menu", replies)
	}
	// The user keeps their role and may retry after buying.
	mustState(t, f, 5, session.StateAwaitingText)
}

func TestDispatcher_PurchaseAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	replies, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 9, Callback: "buy_ten"})
	if err != nil {
		t.Fatalf("buy error = %v", err)
	}
	if len(replies) != 1 || replies[0].Kind != ReplyCheckout {
		t.Fatalf("replies = %+v, want a checkout reply", replies)
	}
	token := replies[0].Token

	// Not paid yet.
	replies, err = f.dispatcher.HandleEvent(ctx, Event{UserID: 9, Callback: "check_" + token})
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	balance, _ := f.users.Credits(ctx, 9)
	if balance != 1 {
		t.Errorf("balance = %d, want untouched signup credit before payment", balance)
	}

	// The provider sees the payment; confirmation grants exactly once.
	f.provider.operations = []payment.Operation{{
		OperationID: "op-9",
		Status:      payment.OperationStatusSuccess,
		Direction:   payment.OperationDirectionIn,
		Label:       token,
	}}

	if _, err = f.dispatcher.HandleEvent(ctx, Event{UserID: 9, Callback: "check_" + token}); err != nil {
		t.Fatalf("confirm error = %v", err)
	}
	balance, _ = f.users.Credits(ctx, 9)
	if balance != 11 {
		t.Errorf("balance = %d, want 11 after the grant", balance)
	}

	// Duplicate tap.
	replies, err = f.dispatcher.HandleEvent(ctx, Event{UserID: 9, Callback: "check_" + token})
	if err != nil {
		t.Fatalf("duplicate confirm error = %v", err)
	}
	balance, _ = f.users.Credits(ctx, 9)
	if balance != 11 {
		t.Errorf("balance = %d, want still 11 after a duplicate confirmation", balance)
	}
	if len(replies) != 1 || replies[0].Kind != ReplyMessage {
		t.Errorf("replies = %+v, want an already-credited message", replies)
	}
}

func TestDispatcher_SupportFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 2, Callback: "support"}); err != nil {
		t.Fatalf("support error = %v", err)
	}
	mustState(t, f, 2, session.StateAwaitingSupport)

	if _, err := f.dispatcher.HandleEvent(ctx, Event{UserID: 2, Text: "my analysis never arrived"}); err != nil {
		t.Fatalf("support message error = %v", err)
	}
	mustState(t, f, 2, session.StateMainMenu)

	messages, _ := f.support.List(ctx, model.SupportStatusNew)
	if len(messages) != 1 || messages[0].Message != "my analysis never arrived" {
		t.Errorf("support inbox = %+v, want the stored inquiry", messages)
	}
}
