package store

import "context"

// Store is the persistence boundary of the bot. Implementations must make
// SetUserToken and SetInviter conditional so a value is assigned at most once.
type Store interface {
	// FindOrCreateUser returns the user row, inserting it from p when absent.
	// Existing rows are returned unchanged.
	FindOrCreateUser(ctx context.Context, p Profile) (ReferralUser, Outcome, error)
	FindUser(ctx context.Context, id int64) (ReferralUser, error)
	UserByToken(ctx context.Context, token string) (ReferralUser, error)
	// SetUserToken stores token only when the user has none and returns the
	// token the row holds afterwards.
	SetUserToken(ctx context.Context, userID int64, token string) (string, error)
	// SetInviter stores inviterID only when the user has no inviter. It
	// reports whether the row changed.
	SetInviter(ctx context.Context, userID, inviterID int64) (bool, error)
	// Descendants returns the users exactly level hops below userID
	// (level 1..3), ordered by creation.
	Descendants(ctx context.Context, userID int64, level int) ([]ReferralUser, error)

	GetStep(ctx context.Context, chatID int64) (ConversationStep, error)
	SetStep(ctx context.Context, chatID int64, step int) error

	FindOrCreateDraft(ctx context.Context, userID, chatID int64) (OrderDraft, Outcome, error)
	SaveDraft(ctx context.Context, d OrderDraft) error

	UpsertAdminContact(ctx context.Context, tm string, chatID int64) error
	// AdminChatID resolves tm case-insensitively.
	AdminChatID(ctx context.Context, tm string) (int64, error)

	Settings(ctx context.Context) (SiteSettings, error)
	EnsureSettings(ctx context.Context, defaults SiteSettings) (Outcome, error)

	ListProviders(ctx context.Context) ([]LinkProvider, error)
	ProviderByName(ctx context.Context, name string) (LinkProvider, error)
	UpsertProvider(ctx context.Context, p LinkProvider) error
}

// MaxDepth is the deepest descendant level the store answers for.
const MaxDepth = 3
