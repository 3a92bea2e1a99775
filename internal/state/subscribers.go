package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"EarningsTracker/internal/ports"
)

// SubscribersKey holds the user-managed part of the recipient list.
const SubscribersKey = "email_list"

var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrProtectedSubscriber = errors.New("protected subscriber cannot be removed")
)

var emailExpr = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Subscribers is a SubscriberStore whose protected addresses always head the list.
// Updates are read-modify-write on one key; concurrent edits may lose one another.
type Subscribers struct {
	store     ports.KeyValueStore
	protected []string
	logger    *slog.Logger
}

var _ ports.SubscriberStore = (*Subscribers)(nil)

// NewSubscribers registers the protected defaults.
func NewSubscribers(store ports.KeyValueStore, protected []string, logger *slog.Logger) *Subscribers {
	if logger == nil {
		logger = discardLogger()
	}
	clean := make([]string, 0, len(protected))
	for _, email := range protected {
		if email = strings.TrimSpace(email); email != "" && !contains(clean, email) {
			clean = append(clean, email)
		}
	}
	return &Subscribers{store: store, protected: clean, logger: logger}
}

// ValidEmail applies the same loose shape check as the subscription form.
func ValidEmail(email string) bool {
	return emailExpr.MatchString(email)
}

// List returns protected addresses first, then stored ones, without duplicates.
func (s *Subscribers) List(ctx context.Context) ([]string, error) {
	raw, err := s.raw(ctx)
	if err != nil {
		return nil, err
	}
	out := append([]string(nil), s.protected...)
	for _, email := range raw {
		if email = strings.TrimSpace(email); email != "" && !contains(out, email) {
			out = append(out, email)
		}
	}
	return out, nil
}

// Add stores email; it returns false without error when the address is already subscribed.
func (s *Subscribers) Add(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return false, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if s.IsProtected(email) {
		return false, nil
	}
	raw, err := s.raw(ctx)
	if err != nil {
		return false, err
	}
	if contains(raw, email) {
		return false, nil
	}
	if err := setJSON(ctx, s.store, SubscribersKey, append(raw, email), 0); err != nil {
		return false, fmt.Errorf("save subscribers: %w", err)
	}
	s.logger.Info("subscriber added", "email", email)
	return true, nil
}

// Remove deletes email; protected addresses are refused, unknown ones report false.
func (s *Subscribers) Remove(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if s.IsProtected(email) {
		return false, ErrProtectedSubscriber
	}
	raw, err := s.raw(ctx)
	if err != nil {
		return false, err
	}
	kept := make([]string, 0, len(raw))
	for _, existing := range raw {
		if !strings.EqualFold(strings.TrimSpace(existing), email) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(raw) {
		return false, nil
	}
	if err := setJSON(ctx, s.store, SubscribersKey, kept, 0); err != nil {
		return false, fmt.Errorf("save subscribers: %w", err)
	}
	s.logger.Info("subscriber removed", "email", email)
	return true, nil
}

// Clear drops every stored address; protected ones remain listed.
func (s *Subscribers) Clear(ctx context.Context) error {
	if err := setJSON(ctx, s.store, SubscribersKey, []string{}, 0); err != nil {
		return fmt.Errorf("clear subscribers: %w", err)
	}
	return nil
}

// IsProtected reports whether email is a system-defined recipient.
func (s *Subscribers) IsProtected(email string) bool {
	return contains(s.protected, strings.TrimSpace(email))
}

func (s *Subscribers) raw(ctx context.Context) ([]string, error) {
	var list []string
	if _, err := getJSON(ctx, s.store, SubscribersKey, &list); err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}
	return list, nil
}

func contains(list []string, email string) bool {
	for _, existing := range list {
		if strings.EqualFold(strings.TrimSpace(existing), email) {
			return true
		}
	}
	return false
}
