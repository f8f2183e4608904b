// Package referral implements the three-level referral graph: invitation
// tokens, inviter assignment, descendant listing and rewards.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/refbot/bot/store"
	"github.com/m3rciful/refbot/core/logger"
)

// Tree holds descendants by level; Tree[0] are direct invitees.
type Tree [store.MaxDepth][]store.ReferralUser

// Level returns the descendants n hops below the root (1..3).
func (t *Tree) Level(n int) []store.ReferralUser {
	if t == nil || n < 1 || n > store.MaxDepth {
		return nil
	}
	return t[n-1]
}

// Engine answers referral questions on top of a Store. It keeps no state of
// its own.
type Engine struct {
	store    store.Store
	rewards  [store.MaxDepth]int
	newToken func() string
}

// NewEngine returns an engine paying rewards[n-1] per level-n descendant.
func NewEngine(s store.Store, rewards [store.MaxDepth]int) *Engine {
	return &Engine{store: s, rewards: rewards, newToken: newToken}
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GenerateOrGetToken returns the user's invitation token, creating the user
// row and the token when missing.
func (e *Engine) GenerateOrGetToken(ctx context.Context, p store.Profile) (string, error) {
	u, _, err := e.store.FindOrCreateUser(ctx, p)
	if err != nil {
		return "", err
	}
	if u.HasToken() {
		return *u.Token, nil
	}
	token, err := e.store.SetUserToken(ctx, u.ID, e.newToken())
	if err != nil {
		return "", fmt.Errorf("assign token: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCReferral, slog.LevelInfo, "token.assigned", slog.Int64("user_id", u.ID))
	return token, nil
}

// ResolveInvitation credits the owner of token as the inviter of p. Unknown
// tokens, self invitations, already invited users and inviters that would
// close a cycle are ignored.
func (e *Engine) ResolveInvitation(ctx context.Context, p store.Profile, token string) error {
	u, out, err := e.store.FindOrCreateUser(ctx, p)
	if err != nil {
		return err
	}
	if out == store.Found && (u.InvitedByID != nil || (u.Token != nil && *u.Token == token)) {
		logger.LogEvent(ctx, logger.SVCReferral, slog.LevelDebug, "invitation.resolve", slog.String("outcome", "ignored"))
		return nil
	}
	inviter, err := e.store.UserByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		logger.LogEvent(ctx, logger.SVCReferral, slog.LevelDebug, "invitation.resolve", slog.String("outcome", "ignored"))
		return nil
	}
	if err != nil {
		return err
	}
	cyclic, err := e.isAncestor(ctx, u.ID, inviter)
	if err != nil {
		return err
	}
	if cyclic {
		logger.LogEvent(ctx, logger.SVCReferral, slog.LevelWarn, "invitation.cycle",
			slog.Int64("user_id", u.ID),
			slog.Int64("inviter_id", inviter.ID),
		)
		return nil
	}
	changed, err := e.store.SetInviter(ctx, u.ID, inviter.ID)
	if err != nil {
		return fmt.Errorf("set inviter: %w", err)
	}
	outcome := "ignored"
	if changed {
		outcome = "created"
	}
	logger.LogEvent(ctx, logger.SVCReferral, slog.LevelInfo, "invitation.resolve",
		slog.Int64("inviter_id", inviter.ID),
		slog.String("outcome", outcome),
	)
	return nil
}

// isAncestor reports whether userID is inviter itself or one of its ancestors.
func (e *Engine) isAncestor(ctx context.Context, userID int64, inviter store.ReferralUser) (bool, error) {
	seen := map[int64]struct{}{}
	cur := inviter
	for {
		if cur.ID == userID {
			return true, nil
		}
		if cur.InvitedByID == nil {
			return false, nil
		}
		if _, ok := seen[cur.ID]; ok {
			return true, nil
		}
		seen[cur.ID] = struct{}{}
		next, err := e.store.FindUser(ctx, *cur.InvitedByID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		cur = next
	}
}

// ListDescendants returns the three descendant levels of p, or nil when p
// never requested a token. Levels below an empty level are left empty.
func (e *Engine) ListDescendants(ctx context.Context, p store.Profile) (*Tree, error) {
	u, err := e.store.FindUser(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.HasToken() {
		return nil, nil
	}
	var tree Tree
	for level := 1; level <= store.MaxDepth; level++ {
		users, err := e.store.Descendants(ctx, u.ID, level)
		if err != nil {
			return nil, err
		}
		tree[level-1] = users
		if len(users) == 0 {
			break
		}
	}
	return &tree, nil
}

// ComputeReward returns the sum over levels of descendant count times the
// level reward, or 0 when p never requested a token.
func (e *Engine) ComputeReward(ctx context.Context, p store.Profile) (int, error) {
	tree, err := e.ListDescendants(ctx, p)
	if err != nil || tree == nil {
		return 0, err
	}
	total := 0
	for i, users := range tree {
		total += len(users) * e.rewards[i]
	}
	logger.LogEvent(ctx, logger.SVCReferral, slog.LevelDebug, "reward.computed", slog.Int("reward", total))
	return total, nil
}
