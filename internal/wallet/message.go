package wallet

import "strings"

// Action is a labelled button. Token is "key" or "key|payload".
type Action struct {
	Label string
	Token string
}

// OutboundMessage is a reply: text plus optional rows of buttons.
type OutboundMessage struct {
	Text    string
	Actions [][]Action
}

func reply(text string, rows ...[]Action) OutboundMessage {
	return OutboundMessage{Text: text, Actions: rows}
}

// Button keys. Payload, when present, follows the separator.
const (
	KeyRateAccept     = "rate_accept"
	KeyRateCustom     = "rate_custom"
	KeyExpenseOK      = "exp_ok"
	KeyExpenseNo      = "exp_no"
	KeyTripSelect     = "trip_select"
	KeyTripClose      = "trip_close"
	KeyTripReopen     = "trip_reopen"
	KeyCategoryView   = "cat_view"
	KeyMenuMain       = "menu_main"
	KeyMenuNewTrip    = "menu_newtrip"
	KeyMenuTrips      = "menu_trips"
	KeyMenuArchive    = "menu_archive"
	KeyMenuBalance    = "menu_balance"
	KeyMenuHistory    = "menu_history"
	KeyMenuCategories = "menu_categories"
	KeyMenuSetRate    = "menu_setrate"
)

const tokenSeparator = "|"

// ButtonKeys lists every key HandleButtonPress understands.
func ButtonKeys() []string {
	return []string{
		KeyRateAccept, KeyRateCustom, KeyExpenseOK, KeyExpenseNo,
		KeyTripSelect, KeyTripClose, KeyTripReopen, KeyCategoryView,
		KeyMenuMain, KeyMenuNewTrip, KeyMenuTrips, KeyMenuArchive,
		KeyMenuBalance, KeyMenuHistory, KeyMenuCategories, KeyMenuSetRate,
	}
}

// Token joins a key and its payload parts.
func Token(key string, payload ...string) string {
	if len(payload) == 0 {
		return key
	}
	return key + tokenSeparator + strings.Join(payload, tokenSeparator)
}

func splitToken(token string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(token), tokenSeparator)
	return parts[0], parts[1:]
}

func menuActions() [][]Action {
	return [][]Action{
		{{Label: "🧳 New trip", Token: KeyMenuNewTrip}, {Label: "🗂 My trips", Token: KeyMenuTrips}},
		{{Label: "💰 Balance", Token: KeyMenuBalance}, {Label: "🧾 History", Token: KeyMenuHistory}},
		{{Label: "📊 Categories", Token: KeyMenuCategories}, {Label: "💱 Change rate", Token: KeyMenuSetRate}},
		{{Label: "📦 Archive", Token: KeyMenuArchive}},
	}
}

func backToMenu() []Action {
	return []Action{{Label: "⬅️ Menu", Token: KeyMenuMain}}
}

const msgWelcome = "Hi! I keep your travel budget in two currencies.\n\n" +
	"Create a trip, then just send me a number to record an expense in the local currency."

const (
	msgMenu          = "What would you like to do?"
	msgAskFrom       = "Which country are you travelling from? Your budget will be kept in its currency."
	msgAskTo         = "Where are you going?"
	msgUnknownText   = "I didn't get that. Send an amount to record an expense, or open the /menu."
	msgNoActiveTrip  = "You have no active trip. Create one with /newtrip or pick one in /trips."
	msgTripClosed    = "Your active trip is closed. Reopen it from /archive or pick another one in /trips."
	msgBusy          = "The wallet is busy right now, please try again in a moment."
	msgCorrupted     = "Something went wrong with the current step. Please start again."
	msgFailure       = "Something went wrong. Please start again."
	msgRatesDown     = "The exchange rate service is not available right now. Please try /newtrip again later."
	msgStaleButton   = "This button is no longer active."
	msgNothingCancel = "There is nothing to cancel."
	msgCancelled     = "Cancelled."
	msgExpenseNo     = "Expense discarded."
	msgInvalidAmount = "Please send a positive number, for example 1500 or 12,50."
	msgNoTrips       = "You have no trips yet. Create one with /newtrip."
	msgNoArchive     = "No closed trips."
	msgNoExpenses    = "No expenses yet."
)
