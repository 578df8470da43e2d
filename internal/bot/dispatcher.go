package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/editorial-bot/internal/apperror"
	"github.com/sakif/editorial-bot/internal/model"
	"github.com/sakif/editorial-bot/internal/service"
	"github.com/sakif/editorial-bot/internal/session"
)

const aboutText = "I analyze your text through the eyes of an editorial professional: " +
	"pick a role, send your text, get a detailed review. Each analysis costs one credit; " +
	"new users start with one free credit."

// Dispatcher routes inbound events through the per-user state machine.
//
// Menu navigation intents work from any state (they are transitions, not
// errors); only free text is interpreted by the current state. The
// dispatcher holds no locks of its own — per-user atomicity lives in the
// session store and the repositories, so a stale in-flight analysis can
// never corrupt another event's state.
type Dispatcher struct {
	sessions session.Store
	users    *service.UserService
	analyses *service.AnalysisService
	payments *service.PaymentService
	support  *service.SupportService
	roles    []model.Role
	tariffs  []model.Tariff
	chunkLen int
	logger   *slog.Logger
}

func NewDispatcher(
	sessions session.Store,
	users *service.UserService,
	analyses *service.AnalysisService,
	payments *service.PaymentService,
	support *service.SupportService,
	roles []model.Role,
	tariffs []model.Tariff,
	chunkLen int,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		users:    users,
		analyses: analyses,
		payments: payments,
		support:  support,
		roles:    roles,
		tariffs:  tariffs,
		chunkLen: chunkLen,
		logger:   logger,
	}
}

// HandleEvent processes one inbound event and returns the ordered replies.
// An error means infrastructure failure (store down); everything the user
// can recover from comes back as replies.
func (d *Dispatcher) HandleEvent(ctx context.Context, e Event) ([]Reply, error) {
	user := &model.User{
		ID:        e.UserID,
		Username:  e.Username,
		FirstName: e.FirstName,
		LastName:  e.LastName,
	}
	if _, err := d.users.Ensure(ctx, user); err != nil {
		return nil, err
	}
	d.users.Touch(ctx, e.UserID)

	intent := ParseIntent(e)

	switch intent.Kind {
	case IntentStart:
		return d.handleStart(ctx, e.UserID)
	case IntentRoles:
		return d.handleRolesMenu(ctx, e.UserID)
	case IntentPickRole:
		return d.handlePickRole(ctx, e.UserID, intent.Arg)
	case IntentBack:
		return d.handleBack(ctx, e.UserID)
	case IntentBalance:
		return d.handleBalance(ctx, e.UserID)
	case IntentTariffs:
		return d.handleTariffMenu(ctx, e.UserID)
	case IntentBuy:
		return d.handleBuy(ctx, e.UserID, intent.Arg)
	case IntentCheckPayment:
		return d.handleCheckPayment(ctx, e.UserID, intent.Arg)
	case IntentCancelPayment:
		return d.handleCancelPayment(ctx, e.UserID)
	case IntentSupport:
		return d.handleSupportStart(ctx, e.UserID)
	case IntentAbout:
		return []Reply{message(aboutText)}, nil
	case IntentFreeText:
		return d.handleFreeText(ctx, e.UserID, intent.Arg)
	}

	return []Reply{{Kind: ReplyUnrecognized}}, nil
}

func (d *Dispatcher) handleStart(ctx context.Context, userID int64) ([]Reply, error) {
	if err := d.sessions.Reset(ctx, userID); err != nil {
		return nil, err
	}
	return []Reply{d.mainMenu("Welcome! Pick a role, send your text and get an editorial review.")}, nil
}

func (d *Dispatcher) handleRolesMenu(ctx context.Context, userID int64) ([]Reply, error) {
	if err := d.sessions.Put(ctx, userID, session.Session{State: session.StateRoleSelection}); err != nil {
		return nil, err
	}
	return []Reply{d.rolesMenu()}, nil
}

func (d *Dispatcher) handlePickRole(ctx context.Context, userID int64, roleKey string) ([]Reply, error) {
	role, ok := d.roleByKey(roleKey)
	if !ok {
		// A stale or mangled control; stay where we are.
		return []Reply{{Kind: ReplyUnrecognized}}, nil
	}

	if err := d.sessions.Put(ctx, userID, session.Session{
		State:        session.StateAwaitingText,
		SelectedRole: role.Key,
	}); err != nil {
		return nil, err
	}

	return []Reply{message(fmt.Sprintf(
		"Role selected: %s. Now send me the text you want analyzed.", role.Name))}, nil
}

func (d *Dispatcher) handleBack(ctx context.Context, userID int64) ([]Reply, error) {
	if err := d.sessions.Reset(ctx, userID); err != nil {
		return nil, err
	}
	return []Reply{d.mainMenu("Main menu.")}, nil
}

func (d *Dispatcher) handleBalance(ctx context.Context, userID int64) ([]Reply, error) {
	balance, err := d.users.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Your balance: %d credit(s).", balance)
	if balance < 3 {
		text += " Running low — you can buy more below."
		return []Reply{menu(text, d.tariffOptions())}, nil
	}
	return []Reply{message(text)}, nil
}

func (d *Dispatcher) handleTariffMenu(ctx context.Context, userID int64) ([]Reply, error) {
	return []Reply{menu("Pick a credit bundle:", d.tariffOptions())}, nil
}

func (d *Dispatcher) handleBuy(ctx context.Context, userID int64, tariffKey string) ([]Reply, error) {
	charge, err := d.payments.CreateCharge(ctx, userID, tariffKey)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			return []Reply{{Kind: ReplyUnrecognized}}, nil
		case errors.Is(err, apperror.ErrExternal), errors.Is(err, apperror.ErrUnavailable):
			return []Reply{message("Payments are unavailable right now, please try again later.")}, nil
		}
		return nil, err
	}

	return []Reply{{
		Kind:  ReplyCheckout,
		Text:  fmt.Sprintf("Pay %.0f₽ for %d credit(s), then tap «I have paid».", charge.Amount, charge.Credits),
		URL:   charge.URL,
		Token: charge.Token,
		Options: []Option{
			{Label: "I have paid", Data: "check_" + charge.Token},
			{Label: "Cancel", Data: "cancel_payment"},
		},
	}}, nil
}

func (d *Dispatcher) handleCheckPayment(ctx context.Context, userID int64, token string) ([]Reply, error) {
	p, err := d.payments.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return []Reply{message("I can't find that payment. Start a new purchase from the menu.")}, nil
		}
		return nil, err
	}

	if p.Status == model.PaymentStatusCompleted {
		return []Reply{message("This payment was already credited.")}, nil
	}

	paid, _, err := d.payments.PollStatus(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrExternal) {
			return []Reply{message("Could not check the payment right now, please try again in a minute.")}, nil
		}
		return nil, err
	}
	if !paid {
		return []Reply{message("The payment hasn't arrived yet. If you just paid, give it a minute and tap again.")}, nil
	}

	_, done, err := d.payments.Complete(ctx, token)
	if err != nil {
		return nil, err
	}
	if !done {
		// A concurrent confirmation or the sweep got there first.
		return []Reply{message("This payment was already credited.")}, nil
	}

	balance, err := d.users.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []Reply{message(fmt.Sprintf(
		"Payment received! %d credit(s) added. Your balance: %d.", p.CreditsGranted, balance))}, nil
}

func (d *Dispatcher) handleCancelPayment(ctx context.Context, userID int64) ([]Reply, error) {
	// The pending record stays; an unpaid charge can never be completed.
	return []Reply{d.mainMenu("Purchase cancelled.")}, nil
}

func (d *Dispatcher) handleSupportStart(ctx context.Context, userID int64) ([]Reply, error) {
	if err := d.sessions.Put(ctx, userID, session.Session{State: session.StateAwaitingSupport}); err != nil {
		return nil, err
	}
	return []Reply{message("Describe your problem in one message and I'll pass it to the team.")}, nil
}

func (d *Dispatcher) handleFreeText(ctx context.Context, userID int64, text string) ([]Reply, error) {
	sess, err := d.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch sess.State {
	case session.StateAwaitingText:
		return d.handleAnalysisText(ctx, userID, sess, text)

	case session.StateAwaitingSupport:
		if _, err := d.support.Submit(ctx, userID, text); err != nil {
			if errors.Is(err, apperror.ErrValidation) {
				return []Reply{message("Please describe the problem in plain text.")}, nil
			}
			return nil, err
		}
		if err := d.sessions.Reset(ctx, userID); err != nil {
			return nil, err
		}
		return []Reply{d.mainMenu("Thanks! Your message has been passed to the team.")}, nil
	}

	// MAIN_MENU and ROLE_SELECTION accept no free text.
	d.logger.Debug("unroutable input",
		slog.Int64("userId", userID),
		slog.String("state", string(sess.State)),
	)
	return []Reply{{Kind: ReplyUnrecognized}}, nil
}

func (d *Dispatcher) handleAnalysisText(ctx context.Context, userID int64, sess session.Session, text string) ([]Reply, error) {
	if sess.SelectedRole == "" {
		// A restored session lost its role (e.g. redis TTL ate half the
		// record) — re-prompt instead of guessing.
		if err := d.sessions.Put(ctx, userID, session.Session{State: session.StateRoleSelection}); err != nil {
			return nil, err
		}
		return []Reply{message("I lost track of the role you picked, sorry. Pick it again:"), d.rolesMenu()}, nil
	}

	result, err := d.analyses.Analyze(ctx, userID, sess.SelectedRole, text)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			// Over-limit text: report the reason, keep waiting for a retry.
			return []Reply{message(err.Error())}, nil
		case errors.Is(err, apperror.ErrInsufficientCredits):
			return []Reply{menu("You're out of credits. Buy a bundle to continue:", d.tariffOptions())}, nil
		case errors.Is(err, apperror.ErrExternal):
			// Completion failed, nothing was spent; the role stays selected
			// so the user can simply resend the text.
			return []Reply{message("The analysis failed, your credit was not spent. Please try again.")}, nil
		case errors.Is(err, apperror.ErrConflict):
			if resetErr := d.sessions.Reset(ctx, userID); resetErr != nil {
				return nil, resetErr
			}
			return []Reply{message("Something went wrong billing the analysis, no credit was spent. Please try again from the menu.")}, nil
		}
		return nil, err
	}

	if err := d.sessions.Reset(ctx, userID); err != nil {
		return nil, err
	}

	replies := chunked(result.Text, d.chunkLen)
	replies = append(replies, d.mainMenu(fmt.Sprintf(
		"Analysis complete. You have %d credit(s) left.", result.Remaining)))
	return replies, nil
}

func (d *Dispatcher) roleByKey(key string) (model.Role, bool) {
	for _, r := range d.roles {
		if r.Key == key {
			return r, true
		}
	}
	return model.Role{}, false
}

func (d *Dispatcher) mainMenu(text string) Reply {
	return menu(text, []Option{
		{Label: LabelRoles, Data: "roles"},
		{Label: LabelTariffs, Data: "tariffs"},
		{Label: LabelBalance, Data: "balance"},
		{Label: LabelSupport, Data: "support"},
		{Label: LabelAbout, Data: "about"},
	})
}

func (d *Dispatcher) rolesMenu() Reply {
	options := make([]Option, 0, len(d.roles)+1)
	for _, r := range d.roles {
		options = append(options, Option{Label: r.Name, Data: "role_" + r.Key})
	}
	options = append(options, Option{Label: LabelBack, Data: "back"})
	return menu("Who should read your text?", options)
}

func (d *Dispatcher) tariffOptions() []Option {
	options := make([]Option, 0, len(d.tariffs)+1)
	for _, t := range d.tariffs {
		options = append(options, Option{Label: t.Label, Data: "buy_" + t.Key})
	}
	options = append(options, Option{Label: LabelBack, Data: "back"})
	return options
}
