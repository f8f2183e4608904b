package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/refbot/bot/referral"
	"github.com/m3rciful/refbot/bot/store"
)

// contendedStore slows step reads down and records how many dispatches of
// one chat are between reading and writing its step at the same time.
type contendedStore struct {
	*store.Memory

	mu      sync.Mutex
	active  map[int64]int
	maxSeen int
	gates   map[int64]chan struct{}
	entered chan int64
}

func newContendedStore() *contendedStore {
	return &contendedStore{
		Memory:  store.NewMemory(),
		active:  make(map[int64]int),
		gates:   make(map[int64]chan struct{}),
		entered: make(chan int64, 1),
	}
}

func (s *contendedStore) GetStep(ctx context.Context, chatID int64) (store.ConversationStep, error) {
	s.mu.Lock()
	s.active[chatID]++
	if s.active[chatID] > s.maxSeen {
		s.maxSeen = s.active[chatID]
	}
	gate := s.gates[chatID]
	s.mu.Unlock()

	if gate != nil {
		s.entered <- chatID
		<-gate
	}
	time.Sleep(time.Millisecond)
	return s.Memory.GetStep(ctx, chatID)
}

func (s *contendedStore) SetStep(ctx context.Context, chatID int64, step int) error {
	err := s.Memory.SetStep(ctx, chatID, step)
	s.mu.Lock()
	s.active[chatID]--
	s.mu.Unlock()
	return err
}

func newContendedDispatcher(t *testing.T) (*contendedStore, *notifyRecorder, *Dispatcher) {
	t.Helper()
	s := newContendedStore()
	if _, err := s.EnsureSettings(context.Background(), store.DefaultSettings()); err != nil {
		t.Fatalf("settings: %v", err)
	}
	n := &notifyRecorder{}
	m := NewMachine(s, referral.NewEngine(s, [3]int{100, 100, 100}), &recorder{}, n, Options{BotName: "refbot"})
	return s, n, NewDispatcher(m, "refbot")
}

func TestDispatchSerializesOneChat(t *testing.T) {
	s, n, d := newContendedDispatcher(t)
	ctx := context.Background()
	const rounds = 10

	for round := 0; round < rounds; round++ {
		if err := s.Memory.SetStep(ctx, chat, int(StepOrderInputName)); err != nil {
			t.Fatalf("set step: %v", err)
		}
		values := make([]string, 4)
		for i := range values {
			values[i] = fmt.Sprintf("r%d-v%d", round, i)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(values))
		for _, v := range values {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				errs <- d.Dispatch(ctx, Inbound{ChatID: chat, From: ann, Text: text})
			}(v)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("dispatch: %v", err)
			}
		}

		cs, err := s.Memory.GetStep(ctx, chat)
		if err != nil || Step(cs.Step) != StepStart {
			t.Fatalf("round %d: step = %v, %v", round, cs.Step, err)
		}
		draft, _, err := s.FindOrCreateDraft(ctx, ann.ID, chat)
		if err != nil {
			t.Fatalf("draft: %v", err)
		}
		got := []string{draft.Name, draft.Phone, draft.TM, draft.Email}
		sort.Strings(got)
		sort.Strings(values)
		if fmt.Sprint(got) != fmt.Sprint(values) {
			t.Fatalf("round %d: draft fields %v, sent %v", round, got, values)
		}
	}

	if s.maxSeen != 1 {
		t.Fatalf("concurrent dispatches of one chat = %d", s.maxSeen)
	}
	if got := n.count(); got != rounds {
		t.Fatalf("notified %d orders, want %d", got, rounds)
	}
}

func TestDispatchDoesNotBlockOtherChats(t *testing.T) {
	s, _, d := newContendedDispatcher(t)
	ctx := context.Background()
	const slow, fast = int64(1), int64(2)

	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[slow] = gate
	s.mu.Unlock()

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- d.Dispatch(ctx, Inbound{ChatID: slow, From: ann, Text: "/start"})
	}()
	if got := <-s.entered; got != slow {
		t.Fatalf("entered chat %d", got)
	}

	fastDone := make(chan error, 1)
	go func() {
		fastDone <- d.Dispatch(ctx, Inbound{ChatID: fast, From: ann, Text: "/start"})
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast chat: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("chat %d waited for chat %d", fast, slow)
	}

	close(gate)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow chat: %v", err)
	}
}
