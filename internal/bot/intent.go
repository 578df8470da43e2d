// Package bot is the conversational layer: it translates inbound chat
// events into intents, routes them through the per-user state machine and
// produces transport-neutral replies.
package bot

import "strings"

// Event is one inbound chat event, already authenticated by the transport.
// Either Text or Callback is set; Callback carries inline-control data.
type Event struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Text      string `json:"text,omitempty"`
	Callback  string `json:"callback,omitempty"`
}

// IntentKind tags what the user asked for. The dispatcher switches on these
// tags only — display labels never reach the state machine.
type IntentKind string

const (
	IntentStart         IntentKind = "start"
	IntentRoles         IntentKind = "roles"
	IntentTariffs       IntentKind = "tariffs"
	IntentPickRole      IntentKind = "pick_role"
	IntentBack          IntentKind = "back"
	IntentBalance       IntentKind = "balance"
	IntentSupport       IntentKind = "support"
	IntentAbout         IntentKind = "about"
	IntentBuy           IntentKind = "buy"
	IntentCheckPayment  IntentKind = "check_payment"
	IntentCancelPayment IntentKind = "cancel_payment"
	IntentFreeText      IntentKind = "free_text"
)

// Intent is a parsed event: a kind plus its argument (role key for
// PickRole, tariff key for Buy, payment token for CheckPayment, the raw
// text for FreeText).
type Intent struct {
	Kind IntentKind
	Arg  string
}

// Menu labels the bot itself emits. Keeping the translation table next to
// the labels means adding a menu entry cannot drift from its intent.
const (
	LabelRoles   = "Roles"
	LabelTariffs = "Buy credits"
	LabelBalance = "Balance"
	LabelSupport = "Support"
	LabelAbout   = "About"
	LabelBack    = "Back"
)

// ParseIntent translates an event into an intent. Callback data wins over
// message text. Anything unrecognized becomes FreeText carrying the raw
// text — whether that text is meaningful depends on the session state, which
// is the dispatcher's call, not the parser's.
func ParseIntent(e Event) Intent {
	if e.Callback != "" {
		return parseCallback(e.Callback)
	}

	switch e.Text {
	case "/start":
		return Intent{Kind: IntentStart}
	case LabelRoles:
		return Intent{Kind: IntentRoles}
	case LabelTariffs:
		return Intent{Kind: IntentTariffs}
	case LabelBalance:
		return Intent{Kind: IntentBalance}
	case LabelSupport:
		return Intent{Kind: IntentSupport}
	case LabelAbout:
		return Intent{Kind: IntentAbout}
	case LabelBack:
		return Intent{Kind: IntentBack}
	}

	return Intent{Kind: IntentFreeText, Arg: e.Text}
}

func parseCallback(data string) Intent {
	switch {
	case data == "roles":
		return Intent{Kind: IntentRoles}
	case data == "tariffs":
		return Intent{Kind: IntentTariffs}
	case data == "balance":
		return Intent{Kind: IntentBalance}
	case data == "support":
		return Intent{Kind: IntentSupport}
	case data == "about":
		return Intent{Kind: IntentAbout}
	case data == "back":
		return Intent{Kind: IntentBack}
	case data == "cancel_payment":
		return Intent{Kind: IntentCancelPayment}
	case strings.HasPrefix(data, "role_"):
		return Intent{Kind: IntentPickRole, Arg: strings.TrimPrefix(data, "role_")}
	case strings.HasPrefix(data, "buy_"):
		return Intent{Kind: IntentBuy, Arg: strings.TrimPrefix(data, "buy_")}
	case strings.HasPrefix(data, "check_"):
		return Intent{Kind: IntentCheckPayment, Arg: strings.TrimPrefix(data, "check_")}
	}

	// Unknown callback data is treated like free text so the state machine
	// can surface an unrecognized-input reply rather than crash.
	return Intent{Kind: IntentFreeText, Arg: data}
}
