package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/m3rciful/refbot/bot/store"
)

type chatRecorder struct {
	chats []int64
	texts []string
}

func (c *chatRecorder) SendText(_ context.Context, chatID int64, text string) {
	c.chats = append(c.chats, chatID)
	c.texts = append(c.texts, text)
}

type mailRecorder struct {
	to, subject, body string
	calls             int
	err               error
}

func (m *mailRecorder) Send(_ context.Context, to, subject, body string) error {
	m.calls++
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

type inlineQueue struct{ actions []string }

func (q *inlineQueue) Enqueue(_ context.Context, _ int64, action string, run func() error) error {
	q.actions = append(q.actions, action)
	return run()
}

var draft = store.OrderDraft{ChatID: 5, Name: "Ann", Phone: "1", TM: "@ann", Email: "a@b.c"}

func seed(t *testing.T, s store.SiteSettings) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	if _, err := m.EnsureSettings(context.Background(), s); err != nil {
		t.Fatalf("settings: %v", err)
	}
	return m
}

func TestNotifyOrderBothChannels(t *testing.T) {
	m := seed(t, store.SiteSettings{AdminTM: "@Boss", AdminEmail: "boss@example.com"})
	_ = m.UpsertAdminContact(context.Background(), "boss", 42)
	chat, mail, queue := &chatRecorder{}, &mailRecorder{}, &inlineQueue{}

	New(m, chat, mail, queue).NotifyOrder(context.Background(), draft)

	if len(chat.chats) != 1 || chat.chats[0] != 42 || chat.texts[0] != draft.String() {
		t.Fatalf("chat = %+v", chat)
	}
	if mail.calls != 1 || mail.to != "boss@example.com" || mail.subject != OrderSubject || mail.body != draft.String() {
		t.Fatalf("mail = %+v", mail)
	}
	if len(queue.actions) != 1 || queue.actions[0] != "send_email" {
		t.Fatalf("queue = %v", queue.actions)
	}
}

func TestNotifyOrderSkipsUnconfiguredChannels(t *testing.T) {
	m := seed(t, store.SiteSettings{AdminTM: "ghost"})
	chat, mail := &chatRecorder{}, &mailRecorder{}

	New(m, chat, mail, nil).NotifyOrder(context.Background(), draft)

	if len(chat.chats) != 0 {
		t.Fatalf("sent to unregistered admin")
	}
	if mail.calls != 0 {
		t.Fatalf("mail sent without admin email")
	}
}

func TestNotifyOrderWithoutMailer(t *testing.T) {
	m := seed(t, store.SiteSettings{AdminEmail: "boss@example.com"})
	New(m, &chatRecorder{}, NewSMTPMailer(SMTPConfig{}), nil).NotifyOrder(context.Background(), draft)
}

func TestNotifyOrderMailErrorIsSwallowed(t *testing.T) {
	m := seed(t, store.SiteSettings{AdminEmail: "boss@example.com"})
	mail := &mailRecorder{err: errors.New("relay down")}
	New(m, nil, mail, nil).NotifyOrder(context.Background(), draft)
	if mail.calls != 1 {
		t.Fatalf("mail calls = %d", mail.calls)
	}
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var sent []*mail.Msg
	m := &SMTPMailer{
		cfg: SMTPConfig{Host: "mail.example.com", Port: 587, From: "bot@example.com"},
		send: func(_ context.Context, msg *mail.Msg) error {
			sent = append(sent, msg)
			return nil
		},
		now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	body := store.OrderDraft{Name: "Анна", Phone: "1", TM: "@anna", Email: "a@b.c"}.String()
	if err := m.Send(context.Background(), "boss@example.com", OrderSubject, body); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("sent = %d", len(sent))
	}

	var buf bytes.Buffer
	if _, err := sent[0].WriteTo(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{
		"Subject: " + OrderSubject,
		"<boss@example.com>",
		"Message-ID: <",
		"Content-Transfer-Encoding: quoted-printable",
		"charset=UTF-8",
		"=D0=90=D0=BD=D0=BD=D0=B0",
	} {
		if !strings.Contains(raw, want) {
			t.Fatalf("message missing %q:\n%s", want, raw)
		}
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] >= 0x80 {
			t.Fatalf("8-bit byte at %d:\n%s", i, raw)
		}
	}
}

func TestSMTPMailerRejectsBadAddress(t *testing.T) {
	m := &SMTPMailer{
		cfg: SMTPConfig{Host: "mail.example.com", Port: 587, From: "bot@example.com"},
		send: func(context.Context, *mail.Msg) error {
			t.Fatalf("sent a message with an invalid recipient")
			return nil
		},
		now: time.Now,
	}
	if err := m.Send(context.Background(), "not an address", OrderSubject, "x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSMTPMailerWrapsSendError(t *testing.T) {
	relay := errors.New("relay down")
	m := &SMTPMailer{
		cfg:  SMTPConfig{Host: "mail.example.com", Port: 587, From: "bot@example.com"},
		send: func(context.Context, *mail.Msg) error { return relay },
		now:  time.Now,
	}
	if err := m.Send(context.Background(), "boss@example.com", OrderSubject, "x"); !errors.Is(err, relay) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewSMTPMailerDisabledWithoutHost(t *testing.T) {
	if NewSMTPMailer(SMTPConfig{}) != nil {
		t.Fatalf("mailer without host")
	}
}
