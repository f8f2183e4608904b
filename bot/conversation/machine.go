package conversation

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/m3rciful/refbot/bot/referral"
	"github.com/m3rciful/refbot/bot/store"
)

// Inbound is one text message addressed to the bot.
type Inbound struct {
	ChatID int64
	From   store.Profile
	Text   string
}

// Photo is an image sent as a file upload.
type Photo struct {
	Name string
	Data []byte
}

// Sender delivers outbound messages. Delivery is best effort and never
// changes the dialogue state, so the methods return nothing.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string)
	SendHTML(ctx context.Context, chatID int64, html string)
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string)
	SendPhoto(ctx context.Context, chatID int64, photo Photo)
}

// Notifier tells the admin about a completed order.
type Notifier interface {
	NotifyOrder(ctx context.Context, d store.OrderDraft)
}

// Options configures a Machine.
type Options struct {
	// BotName is the bot username used in invitation links.
	BotName string
	// ImageDir is prepended to provider image references.
	ImageDir string
	// QRCode sends a QR code of the invitation link after the link itself.
	QRCode bool
}

// Machine holds the step handlers and the collaborators they use.
type Machine struct {
	store    store.Store
	referral *referral.Engine
	out      Sender
	notify   Notifier
	opts     Options

	readFile func(string) ([]byte, error)
}

// NewMachine wires the step handlers. notify may be nil.
func NewMachine(s store.Store, engine *referral.Engine, out Sender, notify Notifier, opts Options) *Machine {
	return &Machine{
		store:    s,
		referral: engine,
		out:      out,
		notify:   notify,
		opts:     opts,
		readFile: os.ReadFile,
	}
}

// request is what a step handler sees.
type request struct {
	ctx context.Context
	in  Inbound
	// text is the trimmed message text.
	text string
}

func newRequest(ctx context.Context, in Inbound) request {
	return request{ctx: ctx, in: in, text: strings.TrimSpace(in.Text)}
}

type stepHandler func(m *Machine, r request) (Step, error)

// handlers maps a stored step to the function handling the next message.
// StepStart has no handler: text outside the menu at the start is answered
// with the fallback.
var handlers = map[Step]stepHandler{
	StepEarningsList:      (*Machine).handleEarningsList,
	StepInvitationsChoice: (*Machine).handleInvitationsChoice,
	StepOrder:             (*Machine).handleOrder,
	StepOrderInputName:    (*Machine).handleOrderName,
	StepOrderInputPhone:   (*Machine).handleOrderPhone,
	StepOrderInputTM:      (*Machine).handleOrderTM,
	StepOrderInputEmail:   (*Machine).handleOrderEmail,
}

// Handle runs the handler of step for in and returns the next step. When
// step has no handler the fallback answers and the chat returns to start.
func (m *Machine) Handle(ctx context.Context, step Step, in Inbound) (Step, error) {
	r := newRequest(ctx, in)
	h, ok := handlers[step]
	if !ok {
		return m.fallback(r)
	}
	return h(m, r)
}

func (m *Machine) settings(ctx context.Context) (store.SiteSettings, error) {
	s, err := m.store.Settings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return store.DefaultSettings(), nil
	}
	return s, err
}
