package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/refbot/bot/referral"
	"github.com/m3rciful/refbot/bot/store"
	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/metrics"
)

// Global commands matched before the stored step.
const (
	CommandStart     = "/start"
	CommandAdminSave = "/admin_save"
)

const lockStripes = 64

// Dispatcher routes inbound messages: global commands first, then the menu
// labels, then the handler of the chat's stored step, then the fallback.
// Messages of one chat are processed one at a time.
type Dispatcher struct {
	machine  *Machine
	store    store.Store
	referral *referral.Engine
	botName  string

	locks [lockStripes]sync.Mutex
}

// NewDispatcher returns a dispatcher over machine. botName lets commands
// addressed as /start@botname match.
func NewDispatcher(machine *Machine, botName string) *Dispatcher {
	return &Dispatcher{
		machine:  machine,
		store:    machine.store,
		referral: machine.referral,
		botName:  strings.ToLower(botName),
	}
}

func (d *Dispatcher) lock(chatID int64) *sync.Mutex {
	return &d.locks[uint64(chatID)%lockStripes]
}

// Dispatch handles one inbound message end to end and persists the next step.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) error {
	mu := d.lock(in.ChatID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()
	from, hasStep, err := d.currentStep(ctx, in.ChatID)
	if err != nil {
		return err
	}

	route, next, err := d.route(ctx, in, from, hasStep)
	if err != nil {
		logger.LogEvent(ctx, logger.SVCConversation, slog.LevelError, "dispatch",
			slog.String("op", route),
			slog.String("step", from.String()),
			slog.String("err", err.Error()),
		)
		return err
	}
	if err := d.store.SetStep(ctx, in.ChatID, int(next)); err != nil {
		return fmt.Errorf("persist step: %w", err)
	}

	fromLabel := "none"
	if hasStep {
		fromLabel = from.String()
	}
	metrics.RecordTransition(fromLabel, next.String())
	logger.LogEvent(ctx, logger.SVCConversation, slog.LevelInfo, "step.transition",
		slog.String("op", route),
		slog.String("step", fromLabel),
		slog.String("next_step", next.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

func (d *Dispatcher) currentStep(ctx context.Context, chatID int64) (Step, bool, error) {
	cs, err := d.store.GetStep(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return StepStart, false, nil
	}
	if err != nil {
		return StepStart, false, err
	}
	step := Step(cs.Step)
	if !step.Valid() {
		// An unknown code is treated like a missing row.
		return step, false, nil
	}
	return step, true, nil
}

// route picks and runs the handler for in. The returned name is used in logs.
func (d *Dispatcher) route(ctx context.Context, in Inbound, from Step, hasStep bool) (string, Step, error) {
	r := newRequest(ctx, in)
	m := d.machine

	if cmd, arg, ok := d.parseCommand(r.text); ok {
		switch cmd {
		case CommandStart:
			if arg != "" {
				if err := d.referral.ResolveInvitation(ctx, in.From, arg); err != nil {
					return "cmd.start", from, err
				}
			}
			next, err := m.showStartMenu(r)
			return "cmd.start", next, err
		case CommandAdminSave:
			if in.From.Username != "" {
				if err := d.store.UpsertAdminContact(ctx, in.From.Username, in.ChatID); err != nil {
					return "cmd.admin_save", from, err
				}
				logger.LogEvent(ctx, logger.SVCConversation, slog.LevelInfo, "admin.saved", slog.String("outcome", "ok"))
			}
			next, err := m.showStartMenu(r)
			return "cmd.admin_save", next, err
		}
	}

	switch {
	case strings.EqualFold(r.text, LabelEarnMoney):
		next, err := m.showProviders(r)
		return "menu.earn", next, err
	case r.text == LabelInvitations:
		next, err := m.showInvitations(r)
		return "menu.invitations", next, err
	case r.text == LabelOrder:
		next, err := m.showOrder(r)
		return "menu.order", next, err
	}

	if !hasStep {
		next, err := m.fallback(r)
		return "fallback", next, err
	}
	next, err := m.Handle(ctx, from, in)
	return "step." + from.String(), next, err
}

// parseCommand splits "/cmd[@bot] [arg]". Commands addressed to another bot
// are not matched.
func (d *Dispatcher) parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.ToLower(head)
	if name, target, found := strings.Cut(head, "@"); found {
		if d.botName != "" && target != d.botName {
			return "", "", false
		}
		head = name
	}
	switch head {
	case CommandStart, CommandAdminSave:
		return head, strings.TrimSpace(rest), true
	}
	return "", "", false
}
