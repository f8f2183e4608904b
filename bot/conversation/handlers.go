package conversation

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/m3rciful/refbot/bot/store"
	"github.com/m3rciful/refbot/core/logger"
	"github.com/m3rciful/refbot/core/telegram/keyboard"
)

func (m *Machine) showStartMenu(r request) (Step, error) {
	m.out.SendKeyboard(r.ctx, r.in.ChatID, textStartMenu, startMenu)
	return StepStart, nil
}

func (m *Machine) showProviders(r request) (Step, error) {
	providers, err := m.store.ListProviders(r.ctx)
	if err != nil {
		return StepEarningsList, err
	}
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name)
	}
	m.out.SendKeyboard(r.ctx, r.in.ChatID, textProviders, keyboard.Chunk(names, providerRowWidth))
	return StepEarningsList, nil
}

func (m *Machine) showInvitations(r request) (Step, error) {
	m.out.SendKeyboard(r.ctx, r.in.ChatID, textInvitationsMenu, invitationsMenu)
	return StepInvitationsChoice, nil
}

func (m *Machine) showOrder(r request) (Step, error) {
	s, err := m.settings(r.ctx)
	if err != nil {
		return StepOrder, err
	}
	m.out.SendKeyboard(r.ctx, r.in.ChatID, s.OrderDescription, orderMenu)
	return StepOrder, nil
}

func (m *Machine) fallback(r request) (Step, error) {
	m.out.SendText(r.ctx, r.in.ChatID, textRepeat)
	return m.showStartMenu(r)
}

func (m *Machine) handleEarningsList(r request) (Step, error) {
	p, err := m.store.ProviderByName(r.ctx, r.text)
	if errors.Is(err, store.ErrNotFound) {
		m.out.SendText(r.ctx, r.in.ChatID, textUnknownProvider)
		return m.showProviders(r)
	}
	if err != nil {
		return StepEarningsList, err
	}
	m.out.SendText(r.ctx, r.in.ChatID, p.Description)
	m.out.SendText(r.ctx, r.in.ChatID, p.URL)
	if p.Image != nil && *p.Image != "" {
		path := filepath.Join(m.opts.ImageDir, *p.Image)
		data, err := m.readFile(path)
		if err != nil {
			logger.LogEvent(r.ctx, logger.SVCConversation, slog.LevelDebug, "provider.image.skip",
				slog.String("provider", p.Name),
				slog.String("err", err.Error()),
			)
		} else {
			m.out.SendPhoto(r.ctx, r.in.ChatID, Photo{Name: filepath.Base(path), Data: data})
		}
	}
	return m.showStartMenu(r)
}

func (m *Machine) handleInvitationsChoice(r request) (Step, error) {
	switch r.text {
	case LabelInvitationLink:
		return m.sendInvitationLink(r)
	case LabelInvitedList:
		return m.sendInvited(r)
	case LabelBalance:
		return m.sendBalance(r)
	case LabelInvitationDescription:
		s, err := m.settings(r.ctx)
		if err != nil {
			return StepInvitationsChoice, err
		}
		m.out.SendText(r.ctx, r.in.ChatID, s.InvitationDescription)
		return m.showStartMenu(r)
	}
	m.out.SendText(r.ctx, r.in.ChatID, textUnknownCommand)
	return m.showInvitations(r)
}

func (m *Machine) sendInvitationLink(r request) (Step, error) {
	token, err := m.referral.GenerateOrGetToken(r.ctx, r.in.From)
	if err != nil {
		return StepInvitationsChoice, err
	}
	url := fmt.Sprintf(invitationURL, m.opts.BotName, token)
	m.out.SendHTML(r.ctx, r.in.ChatID, fmt.Sprintf(invitationLink, url))
	if m.opts.QRCode {
		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			logger.LogEvent(r.ctx, logger.SVCConversation, slog.LevelWarn, "invitation.qrcode", slog.String("err", err.Error()))
		} else {
			m.out.SendPhoto(r.ctx, r.in.ChatID, Photo{Name: "invitation.png", Data: png})
		}
	}
	return m.showStartMenu(r)
}

func (m *Machine) sendInvited(r request) (Step, error) {
	tree, err := m.referral.ListDescendants(r.ctx, r.in.From)
	if err != nil {
		return StepInvitationsChoice, err
	}
	if tree == nil {
		m.out.SendText(r.ctx, r.in.ChatID, textNoToken)
		return m.sendInvitationLink(r)
	}
	for i, prefix := range []string{textInvitedLevel1, textInvitedLevel2, textInvitedLevel3} {
		m.out.SendText(r.ctx, r.in.ChatID, prefix+joinNames(tree.Level(i+1)))
	}
	return m.showStartMenu(r)
}

func joinNames(users []store.ReferralUser) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name())
	}
	return strings.Join(names, ", ")
}

func (m *Machine) sendBalance(r request) (Step, error) {
	reward, err := m.referral.ComputeReward(r.ctx, r.in.From)
	if err != nil {
		return StepInvitationsChoice, err
	}
	m.out.SendText(r.ctx, r.in.ChatID, fmt.Sprintf(textBalance, reward))
	return m.showStartMenu(r)
}

func (m *Machine) handleOrder(r request) (Step, error) {
	if r.text == LabelLeaveRequest {
		m.out.SendText(r.ctx, r.in.ChatID, textEnterName)
		return StepOrderInputName, nil
	}
	m.out.SendText(r.ctx, r.in.ChatID, textConfirmOrder)
	return m.showOrder(r)
}

// orderField describes one contact detail collected by the order flow.
type orderField struct {
	step   Step
	next   Step
	prompt string
	set    func(d *store.OrderDraft, v string)
}

var (
	nameField  = orderField{StepOrderInputName, StepOrderInputPhone, textEnterName, func(d *store.OrderDraft, v string) { d.Name = v }}
	phoneField = orderField{StepOrderInputPhone, StepOrderInputTM, textEnterPhone, func(d *store.OrderDraft, v string) { d.Phone = v }}
	tmField    = orderField{StepOrderInputTM, StepOrderInputEmail, textEnterTM, func(d *store.OrderDraft, v string) { d.TM = v }}
	emailField = orderField{StepOrderInputEmail, StepStart, textEnterEmail, func(d *store.OrderDraft, v string) { d.Email = v }}
)

// fill stores r.text into f and returns the saved draft. ok is false when
// the text was empty and the user was asked again.
func (m *Machine) fill(r request, f orderField) (d store.OrderDraft, ok bool, err error) {
	if r.text == "" {
		m.out.SendText(r.ctx, r.in.ChatID, textRetryPrefix+f.prompt)
		return d, false, nil
	}
	d, _, err = m.store.FindOrCreateDraft(r.ctx, r.in.From.ID, r.in.ChatID)
	if err != nil {
		return d, false, err
	}
	f.set(&d, r.text)
	if err := m.store.SaveDraft(r.ctx, d); err != nil {
		return d, false, err
	}
	return d, true, nil
}

func (m *Machine) fillAndPrompt(r request, f, next orderField) (Step, error) {
	_, ok, err := m.fill(r, f)
	if err != nil || !ok {
		return f.step, err
	}
	m.out.SendText(r.ctx, r.in.ChatID, next.prompt)
	return f.next, nil
}

func (m *Machine) handleOrderName(r request) (Step, error) {
	return m.fillAndPrompt(r, nameField, phoneField)
}

func (m *Machine) handleOrderPhone(r request) (Step, error) {
	return m.fillAndPrompt(r, phoneField, tmField)
}

func (m *Machine) handleOrderTM(r request) (Step, error) {
	return m.fillAndPrompt(r, tmField, emailField)
}

func (m *Machine) handleOrderEmail(r request) (Step, error) {
	d, ok, err := m.fill(r, emailField)
	if err != nil || !ok {
		return StepOrderInputEmail, err
	}
	m.out.SendText(r.ctx, r.in.ChatID, textThanks)
	if m.notify != nil {
		m.notify.NotifyOrder(r.ctx, d)
	}
	logger.LogEvent(r.ctx, logger.SVCConversation, slog.LevelInfo, "order.complete", slog.Int64("draft_id", d.ID))
	return m.showStartMenu(r)
}
