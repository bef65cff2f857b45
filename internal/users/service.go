package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

// ErrForbidden signals that the actor may not perform the moderation action.
var ErrForbidden = errors.New("users: forbidden")

// AuthzFacts supplies the role and hierarchy facts the evaluator consumes.
type AuthzFacts interface {
	PermissionsFor(ctx context.Context, userID uuid.UUID) (rbac.PermissionSet, error)
	HierarchyLevelFor(ctx context.Context, userID uuid.UUID) (*int32, error)
}

// Service wraps account management and moderation rules.
type Service struct {
	repo  Repository
	facts AuthzFacts
	audit *shared.AuditLogger
	log   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, facts AuthzFacts, audit *shared.AuditLogger, log *slog.Logger) *Service {
	return &Service{repo: repo, facts: facts, audit: audit, log: log}
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetProfile assembles the public profile of a user.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	postCount, err := s.repo.PostCount(ctx, id)
	if err != nil {
		return nil, err
	}
	roleName, err := s.repo.RoleName(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *user, RoleName: roleName, PostCount: postCount}, nil
}

// SetBanned bans or unbans a target user. The actor needs the ban permission
// and must sit strictly above the target in the role hierarchy; a missing
// hierarchy level on either side denies the action.
func (s *Service) SetBanned(ctx context.Context, actorID, targetID uuid.UUID, banned bool) (*User, error) {
	granted, err := s.facts.PermissionsFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	actorLevel, err := s.facts.HierarchyLevelFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	targetLevel, err := s.facts.HierarchyLevelFor(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !rbac.CanActOnHierarchy(actorLevel, targetLevel, rbac.PermBanUserLowerRole, granted) {
		return nil, ErrForbidden
	}

	if err := s.repo.SetBanned(ctx, targetID, banned); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, banAction(banned), targetID)
	return s.repo.GetUser(ctx, targetID)
}

// AssignRole moves a target user onto a role.
func (s *Service) AssignRole(ctx context.Context, actorID, targetID, roleID uuid.UUID) (*User, error) {
	granted, err := s.facts.PermissionsFor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !rbac.HasPermission(granted, rbac.PermAssignRoles) {
		return nil, ErrForbidden
	}
	if err := s.repo.SetRole(ctx, targetID, roleID); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.assign_role", targetID)
	return s.repo.GetUser(ctx, targetID)
}

// UpdateBio updates the caller's own bio.
func (s *Service) UpdateBio(ctx context.Context, userID uuid.UUID, bio string) error {
	return s.repo.SetBio(ctx, userID, strings.TrimSpace(bio))
}

// UpdateAvatarPath stores the caller's avatar location.
func (s *Service) UpdateAvatarPath(ctx context.Context, userID uuid.UUID, path string) error {
	return s.repo.SetAvatarPath(ctx, userID, path)
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, targetID uuid.UUID) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: targetID.String(),
	}); err != nil && s.log != nil {
		s.log.Warn("audit record", slog.Any("error", err))
	}
}

func banAction(banned bool) string {
	if banned {
		return "user.ban"
	}
	return "user.unban"
}
