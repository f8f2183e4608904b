package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and local runs without Postgres.
type Memory struct {
	mu sync.Mutex

	users     map[int64]*memUser
	seq       int64
	steps     map[int64]ConversationStep
	drafts    map[[2]int64]*OrderDraft
	draftSeq  int64
	admins    map[string]AdminContact
	settings  *SiteSettings
	providers []LinkProvider

	now func() time.Time
}

type memUser struct {
	ReferralUser
	seq int64
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]*memUser),
		steps:  make(map[int64]ConversationStep),
		drafts: make(map[[2]int64]*OrderDraft),
		admins: make(map[string]AdminContact),
		now:    time.Now,
	}
}

func (m *Memory) FindOrCreateUser(_ context.Context, p Profile) (ReferralUser, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[p.ID]; ok {
		return u.ReferralUser, Found, nil
	}
	m.seq++
	u := &memUser{
		ReferralUser: ReferralUser{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Username:  p.Username,
			CreatedAt: m.now(),
		},
		seq: m.seq,
	}
	m.users[p.ID] = u
	return u.ReferralUser, Created, nil
}

func (m *Memory) FindUser(_ context.Context, id int64) (ReferralUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ReferralUser{}, ErrNotFound
	}
	return u.ReferralUser, nil
}

func (m *Memory) UserByToken(_ context.Context, token string) (ReferralUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Token != nil && *u.Token == token {
			return u.ReferralUser, nil
		}
	}
	return ReferralUser{}, ErrNotFound
}

func (m *Memory) SetUserToken(_ context.Context, userID int64, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	if u.Token != nil {
		return *u.Token, nil
	}
	for _, other := range m.users {
		if other.Token != nil && *other.Token == token {
			return "", fmt.Errorf("store: token already assigned")
		}
	}
	t := token
	u.Token = &t
	return t, nil
}

func (m *Memory) SetInviter(_ context.Context, userID, inviterID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, ErrNotFound
	}
	if _, ok := m.users[inviterID]; !ok {
		return false, ErrNotFound
	}
	if u.InvitedByID != nil {
		return false, nil
	}
	id := inviterID
	u.InvitedByID = &id
	return true, nil
}

func (m *Memory) Descendants(_ context.Context, userID int64, level int) ([]ReferralUser, error) {
	if level < 1 || level > MaxDepth {
		return nil, fmt.Errorf("store: descendant level %d out of range", level)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	parents := map[int64]struct{}{userID: {}}
	var layer []*memUser
	for depth := 1; depth <= level; depth++ {
		layer = layer[:0]
		for _, u := range m.users {
			if u.InvitedByID == nil {
				continue
			}
			if _, ok := parents[*u.InvitedByID]; ok {
				layer = append(layer, u)
			}
		}
		parents = make(map[int64]struct{}, len(layer))
		for _, u := range layer {
			parents[u.ID] = struct{}{}
		}
	}
	sort.Slice(layer, func(i, j int) bool { return layer[i].seq < layer[j].seq })
	out := make([]ReferralUser, 0, len(layer))
	for _, u := range layer {
		out = append(out, u.ReferralUser)
	}
	return out, nil
}

func (m *Memory) GetStep(_ context.Context, chatID int64) (ConversationStep, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[chatID]
	if !ok {
		return ConversationStep{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) SetStep(_ context.Context, chatID int64, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[chatID] = ConversationStep{ChatID: chatID, Step: step, EnteredAt: m.now()}
	return nil
}

func (m *Memory) FindOrCreateDraft(_ context.Context, userID, chatID int64) (OrderDraft, Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{userID, chatID}
	if d, ok := m.drafts[key]; ok {
		return *d, Found, nil
	}
	m.draftSeq++
	d := &OrderDraft{ID: m.draftSeq, UserID: userID, ChatID: chatID}
	m.drafts[key] = d
	return *d, Created, nil
}

func (m *Memory) SaveDraft(_ context.Context, d OrderDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.drafts[[2]int64{d.UserID, d.ChatID}]
	if !ok {
		return ErrNotFound
	}
	id := cur.ID
	*cur = d
	cur.ID = id
	return nil
}

func (m *Memory) UpsertAdminContact(_ context.Context, tm string, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[strings.ToLower(tm)] = AdminContact{TM: tm, ChatID: chatID}
	return nil
}

func (m *Memory) AdminChatID(_ context.Context, tm string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[strings.ToLower(tm)]
	if !ok {
		return 0, ErrNotFound
	}
	return a.ChatID, nil
}

func (m *Memory) Settings(context.Context) (SiteSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return SiteSettings{}, ErrNotFound
	}
	return *m.settings, nil
}

func (m *Memory) EnsureSettings(_ context.Context, defaults SiteSettings) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings != nil {
		return Found, nil
	}
	s := defaults
	m.settings = &s
	return Created, nil
}

func (m *Memory) ListProviders(context.Context) ([]LinkProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LinkProvider(nil), m.providers...), nil
}

func (m *Memory) ProviderByName(_ context.Context, name string) (LinkProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.Name == name {
			return p, nil
		}
	}
	return LinkProvider{}, ErrNotFound
}

func (m *Memory) UpsertProvider(_ context.Context, p LinkProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.providers {
		if m.providers[i].Name == p.Name {
			p.ID = m.providers[i].ID
			m.providers[i] = p
			return nil
		}
	}
	p.ID = int64(len(m.providers) + 1)
	m.providers = append(m.providers, p)
	return nil
}

var _ Store = (*Memory)(nil)
