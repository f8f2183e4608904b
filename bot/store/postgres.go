package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/refbot/core/logger"
)

const userColumns = "id, first_name, last_name, username, token, invited_by_id, created_at"

// descendantQueries[n-1] selects the users n hops below $1 along invited_by_id.
var descendantQueries = [MaxDepth]string{
	`SELECT u1.id, u1.first_name, u1.last_name, u1.username, u1.token, u1.invited_by_id, u1.created_at
FROM referral_users u1
WHERE u1.invited_by_id = $1
ORDER BY u1.created_at, u1.id`,
	`SELECT u2.id, u2.first_name, u2.last_name, u2.username, u2.token, u2.invited_by_id, u2.created_at
FROM referral_users u1
JOIN referral_users u2 ON u2.invited_by_id = u1.id
WHERE u1.invited_by_id = $1
ORDER BY u2.created_at, u2.id`,
	`SELECT u3.id, u3.first_name, u3.last_name, u3.username, u3.token, u3.invited_by_id, u3.created_at
FROM referral_users u1
JOIN referral_users u2 ON u2.invited_by_id = u1.id
JOIN referral_users u3 ON u3.invited_by_id = u2.id
WHERE u1.invited_by_id = $1
ORDER BY u3.created_at, u3.id`,
}

// Postgres implements Store on top of sqlx and lib/pq.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) observe(ctx context.Context, op string, start time.Time, err error) {
	level := slog.LevelDebug
	if err != nil && !errors.Is(err, ErrNotFound) {
		level = slog.LevelError
	}
	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	logger.LogEvent(ctx, logger.DB, level, "db.query", attrs...)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (p *Postgres) FindOrCreateUser(ctx context.Context, pr Profile) (u ReferralUser, out Outcome, err error) {
	defer func(start time.Time) { p.observe(ctx, "user.find_or_create", start, err) }(time.Now())

	err = p.db.GetContext(ctx, &u, `INSERT INTO referral_users (id, first_name, last_name, username)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING
RETURNING `+userColumns, pr.ID, pr.FirstName, pr.LastName, pr.Username)
	if err == nil {
		return u, Created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return u, Found, fmt.Errorf("insert user: %w", err)
	}
	if err = p.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM referral_users WHERE id = $1`, pr.ID); err != nil {
		return u, Found, fmt.Errorf("select user: %w", notFound(err))
	}
	return u, Found, nil
}

func (p *Postgres) FindUser(ctx context.Context, id int64) (u ReferralUser, err error) {
	defer func(start time.Time) { p.observe(ctx, "user.find", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM referral_users WHERE id = $1`, id))
	return u, err
}

func (p *Postgres) UserByToken(ctx context.Context, token string) (u ReferralUser, err error) {
	defer func(start time.Time) { p.observe(ctx, "user.by_token", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM referral_users WHERE token = $1`, token))
	return u, err
}

func (p *Postgres) SetUserToken(ctx context.Context, userID int64, token string) (stored string, err error) {
	defer func(start time.Time) { p.observe(ctx, "user.set_token", start, err) }(time.Now())

	err = p.db.GetContext(ctx, &stored,
		`UPDATE referral_users SET token = $2 WHERE id = $1 AND token IS NULL RETURNING token`, userID, token)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("set token: %w", err)
	}
	var current sql.NullString
	if err = p.db.GetContext(ctx, &current, `SELECT token FROM referral_users WHERE id = $1`, userID); err != nil {
		return "", fmt.Errorf("read token: %w", notFound(err))
	}
	if !current.Valid {
		return "", fmt.Errorf("read token: %w", ErrNotFound)
	}
	return current.String, nil
}

func (p *Postgres) SetInviter(ctx context.Context, userID, inviterID int64) (changed bool, err error) {
	defer func(start time.Time) { p.observe(ctx, "user.set_inviter", start, err) }(time.Now())

	res, err := p.db.ExecContext(ctx,
		`UPDATE referral_users SET invited_by_id = $2 WHERE id = $1 AND invited_by_id IS NULL`, userID, inviterID)
	if err != nil {
		return false, fmt.Errorf("set inviter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set inviter: %w", err)
	}
	return n == 1, nil
}

func (p *Postgres) Descendants(ctx context.Context, userID int64, level int) (users []ReferralUser, err error) {
	if level < 1 || level > MaxDepth {
		return nil, fmt.Errorf("store: descendant level %d out of range", level)
	}
	defer func(start time.Time) { p.observe(ctx, fmt.Sprintf("user.descendants.%d", level), start, err) }(time.Now())

	if err = p.db.SelectContext(ctx, &users, descendantQueries[level-1], userID); err != nil {
		return nil, fmt.Errorf("select descendants: %w", err)
	}
	return users, nil
}

func (p *Postgres) GetStep(ctx context.Context, chatID int64) (s ConversationStep, err error) {
	defer func(start time.Time) { p.observe(ctx, "step.get", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &s,
		`SELECT chat_id, step, entered_at FROM conversation_steps WHERE chat_id = $1`, chatID))
	return s, err
}

func (p *Postgres) SetStep(ctx context.Context, chatID int64, step int) (err error) {
	defer func(start time.Time) { p.observe(ctx, "step.set", start, err) }(time.Now())
	_, err = p.db.ExecContext(ctx, `INSERT INTO conversation_steps (chat_id, step, entered_at)
VALUES ($1, $2, now())
ON CONFLICT (chat_id) DO UPDATE SET step = EXCLUDED.step, entered_at = EXCLUDED.entered_at`, chatID, step)
	if err != nil {
		return fmt.Errorf("upsert step: %w", err)
	}
	return nil
}

const draftColumns = "id, user_id, chat_id, name, phone, tm, email"

func (p *Postgres) FindOrCreateDraft(ctx context.Context, userID, chatID int64) (d OrderDraft, out Outcome, err error) {
	defer func(start time.Time) { p.observe(ctx, "draft.find_or_create", start, err) }(time.Now())

	err = p.db.GetContext(ctx, &d, `INSERT INTO order_drafts (user_id, chat_id)
VALUES ($1, $2)
ON CONFLICT (user_id, chat_id) DO NOTHING
RETURNING `+draftColumns, userID, chatID)
	if err == nil {
		return d, Created, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return d, Found, fmt.Errorf("insert draft: %w", err)
	}
	if err = p.db.GetContext(ctx, &d,
		`SELECT `+draftColumns+` FROM order_drafts WHERE user_id = $1 AND chat_id = $2`, userID, chatID); err != nil {
		return d, Found, fmt.Errorf("select draft: %w", notFound(err))
	}
	return d, Found, nil
}

func (p *Postgres) SaveDraft(ctx context.Context, d OrderDraft) (err error) {
	defer func(start time.Time) { p.observe(ctx, "draft.save", start, err) }(time.Now())

	res, err := p.db.NamedExecContext(ctx, `UPDATE order_drafts
SET name = :name, phone = :phone, tm = :tm, email = :email
WHERE user_id = :user_id AND chat_id = :chat_id`, d)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) UpsertAdminContact(ctx context.Context, tm string, chatID int64) (err error) {
	defer func(start time.Time) { p.observe(ctx, "admin.upsert", start, err) }(time.Now())
	_, err = p.db.ExecContext(ctx, `INSERT INTO admin_contacts (tm, chat_id)
VALUES ($1, $2)
ON CONFLICT ((lower(tm))) DO UPDATE SET tm = EXCLUDED.tm, chat_id = EXCLUDED.chat_id`, tm, chatID)
	if err != nil {
		return fmt.Errorf("upsert admin contact: %w", err)
	}
	return nil
}

func (p *Postgres) AdminChatID(ctx context.Context, tm string) (chatID int64, err error) {
	defer func(start time.Time) { p.observe(ctx, "admin.chat_id", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &chatID,
		`SELECT chat_id FROM admin_contacts WHERE lower(tm) = lower($1)`, tm))
	return chatID, err
}

func (p *Postgres) Settings(ctx context.Context) (s SiteSettings, err error) {
	defer func(start time.Time) { p.observe(ctx, "settings.get", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &s, `SELECT invitation_description, order_description, admin_tm, admin_email
FROM site_settings WHERE id = 1`))
	return s, err
}

func (p *Postgres) EnsureSettings(ctx context.Context, defaults SiteSettings) (out Outcome, err error) {
	defer func(start time.Time) { p.observe(ctx, "settings.ensure", start, err) }(time.Now())

	res, err := p.db.NamedExecContext(ctx, `INSERT INTO site_settings (id, invitation_description, order_description, admin_tm, admin_email)
VALUES (1, :invitation_description, :order_description, :admin_tm, :admin_email)
ON CONFLICT (id) DO NOTHING`, defaults)
	if err != nil {
		return Found, fmt.Errorf("ensure settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Found, fmt.Errorf("ensure settings: %w", err)
	}
	if n == 1 {
		return Created, nil
	}
	return Found, nil
}

const providerColumns = "id, name, description, url, image"

func (p *Postgres) ListProviders(ctx context.Context) (ps []LinkProvider, err error) {
	defer func(start time.Time) { p.observe(ctx, "provider.list", start, err) }(time.Now())
	if err = p.db.SelectContext(ctx, &ps, `SELECT `+providerColumns+` FROM link_providers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return ps, nil
}

func (p *Postgres) ProviderByName(ctx context.Context, name string) (lp LinkProvider, err error) {
	defer func(start time.Time) { p.observe(ctx, "provider.by_name", start, err) }(time.Now())
	err = notFound(p.db.GetContext(ctx, &lp, `SELECT `+providerColumns+` FROM link_providers WHERE name = $1`, name))
	return lp, err
}

func (p *Postgres) UpsertProvider(ctx context.Context, lp LinkProvider) (err error) {
	defer func(start time.Time) { p.observe(ctx, "provider.upsert", start, err) }(time.Now())
	_, err = p.db.NamedExecContext(ctx, `INSERT INTO link_providers (name, description, url, image)
VALUES (:name, :description, :url, :image)
ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description, url = EXCLUDED.url, image = EXCLUDED.image`, lp)
	if err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

var _ Store = (*Postgres)(nil)
