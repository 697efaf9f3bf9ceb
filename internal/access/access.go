package access

import (
	"context"
	"errors"
	"fmt"
	"log"

	"coffee-fleet-backend/config"
	"coffee-fleet-backend/internal/model"
)

// ErrDenied is returned when an identity may not use the service.
var ErrDenied = errors.New("access denied")

// Identity is an operator as reported by the messenger.
type Identity struct {
	ID       int64
	Username string
}

// UserStore is the part of the ledger store the gate provisions users through.
type UserStore interface {
	EnsureUser(ctx context.Context, user model.User, assignRole bool) (*model.User, error)
}

// Gate resolves an operator identity to a role before anything else runs.
type Gate struct {
	users       UserStore
	policy      string
	admins      map[int64]struct{}
	defaultRole model.Role
	autoActive  bool
}

// NewGate builds a gate for the configured policy.
func NewGate(users UserStore, cfg config.AccessConfig) (*Gate, error) {
	g := &Gate{
		users:       users,
		policy:      cfg.Policy,
		admins:      make(map[int64]struct{}, len(cfg.AdminIDs)),
		defaultRole: model.Role(cfg.DefaultRole),
		autoActive:  cfg.AutoActivate,
	}
	for _, id := range cfg.AdminIDs {
		g.admins[id] = struct{}{}
	}

	switch g.policy {
	case config.PolicyAllowList, config.PolicyProvisioned:
	default:
		return nil, fmt.Errorf("unknown access policy %q", cfg.Policy)
	}
	if !g.defaultRole.Valid() {
		return nil, fmt.Errorf("unknown default role %q", cfg.DefaultRole)
	}
	if len(g.admins) == 0 {
		log.Printf("Warning: access.admin_ids is empty; nobody will be an admin")
	}
	return g, nil
}

// IsAdminID reports whether id is on the static admin list.
func (g *Gate) IsAdminID(id int64) bool {
	_, ok := g.admins[id]
	return ok
}

// Authorize returns the operator's role or ErrDenied. Under the allow-list
// policy a denied identity causes no storage access at all.
func (g *Gate) Authorize(ctx context.Context, id Identity) (model.Role, error) {
	switch g.policy {
	case config.PolicyProvisioned:
		return g.authorizeProvisioned(ctx, id)
	default:
		return g.authorizeAllowList(ctx, id)
	}
}

// authorizeAllowList admits only identities on the admin list and records them as active admins.
func (g *Gate) authorizeAllowList(ctx context.Context, id Identity) (model.Role, error) {
	if !g.IsAdminID(id.ID) {
		return "", ErrDenied
	}
	user := model.User{TelegramID: id.ID, Username: id.Username, Role: model.RoleAdmin, IsActive: true}
	if _, err := g.users.EnsureUser(ctx, user, true); err != nil {
		return "", fmt.Errorf("failed to register operator %d: %w", id.ID, err)
	}
	return model.RoleAdmin, nil
}

// authorizeProvisioned creates every identity on first contact. Admin membership
// is taken from the allow-list at that moment only; afterwards the stored role wins.
func (g *Gate) authorizeProvisioned(ctx context.Context, id Identity) (model.Role, error) {
	user := model.User{TelegramID: id.ID, Username: id.Username, Role: g.defaultRole, IsActive: g.autoActive}
	if g.IsAdminID(id.ID) {
		user.Role = model.RoleAdmin
		user.IsActive = true
	}

	stored, err := g.users.EnsureUser(ctx, user, false)
	if err != nil {
		return "", fmt.Errorf("failed to provision operator %d: %w", id.ID, err)
	}
	if !stored.IsActive || !stored.Role.Valid() {
		return "", ErrDenied
	}
	return stored.Role, nil
}
