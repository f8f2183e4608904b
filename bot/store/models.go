// Package store persists referral users, conversation steps, order drafts
// and the read-only catalog the bot serves.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("store: not found")

// Outcome tells a find-or-create caller whether the row already existed.
type Outcome int

const (
	// Found means the row existed before the call.
	Found Outcome = iota
	// Created means the call inserted the row.
	Created
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "found"
}

// Profile is the sender identity carried by an inbound message.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// ReferralUser is a bot user keyed by the Telegram user id.
type ReferralUser struct {
	ID          int64     `db:"id"`
	FirstName   string    `db:"first_name"`
	LastName    string    `db:"last_name"`
	Username    string    `db:"username"`
	Token       *string   `db:"token"`
	InvitedByID *int64    `db:"invited_by_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// HasToken reports whether the user ever requested an invitation link.
func (u ReferralUser) HasToken() bool {
	return u.Token != nil && *u.Token != ""
}

// Name is the display name used in descendant lists: @username when set,
// first and last name otherwise.
func (u ReferralUser) Name() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ConversationStep is the persisted dialogue state of one chat.
type ConversationStep struct {
	ChatID    int64     `db:"chat_id"`
	Step      int       `db:"step"`
	EnteredAt time.Time `db:"entered_at"`
}

// OrderDraft collects contact details for one (user, chat) pair.
type OrderDraft struct {
	ID     int64  `db:"id"`
	UserID int64  `db:"user_id"`
	ChatID int64  `db:"chat_id"`
	Name   string `db:"name"`
	Phone  string `db:"phone"`
	TM     string `db:"tm"`
	Email  string `db:"email"`
}

func (d OrderDraft) String() string {
	return fmt.Sprintf("Name: %s\nPhone: %s\n@TM: %s\nemail: %s", d.Name, d.Phone, d.TM, d.Email)
}

// AdminContact maps an admin handle to the chat that receives notifications.
type AdminContact struct {
	TM     string `db:"tm"`
	ChatID int64  `db:"chat_id"`
}

// SiteSettings is the singleton row maintained by the admin panel.
type SiteSettings struct {
	InvitationDescription string `db:"invitation_description"`
	OrderDescription      string `db:"order_description"`
	AdminTM               string `db:"admin_tm"`
	AdminEmail            string `db:"admin_email"`
}

// Default descriptions written by the settings seeder.
const (
	DefaultInvitationDescription = "Referral system will help you earn"
	DefaultOrderDescription      = "Leave your request and we will contact you"
)

// DefaultSettings returns the settings used before the admin panel edits them.
func DefaultSettings() SiteSettings {
	return SiteSettings{
		InvitationDescription: DefaultInvitationDescription,
		OrderDescription:      DefaultOrderDescription,
	}
}

// LinkProvider is a catalog entry describing one earning method.
type LinkProvider struct {
	ID          int64   `db:"id" yaml:"-"`
	Name        string  `db:"name" yaml:"name"`
	Description string  `db:"description" yaml:"description"`
	URL         string  `db:"url" yaml:"url"`
	Image       *string `db:"image" yaml:"image,omitempty"`
}
