package threads

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/palaver-board/palaver/internal/rbac"
	"github.com/palaver-board/palaver/internal/shared"
)

// ErrForbidden signals that the actor may not perform the action.
var ErrForbidden = errors.New("threads: forbidden")

// Service wraps thread lifecycle and moderation rules.
type Service struct {
	repo  Repository
	perms rbac.PermissionSource
	audit *shared.AuditLogger
	log   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, perms rbac.PermissionSource, audit *shared.AuditLogger, log *slog.Logger) *Service {
	return &Service{repo: repo, perms: perms, audit: audit, log: log}
}

// ListByCategory returns a page of threads in a category.
func (s *Service) ListByCategory(ctx context.Context, categoryID uuid.UUID, limit, offset int) ([]Thread, error) {
	return s.repo.ListByCategory(ctx, categoryID, limit, offset)
}

// Get fetches one thread.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Thread, error) {
	return s.repo.GetThread(ctx, id)
}

// Create opens a new thread in a category.
func (s *Service) Create(ctx context.Context, authorID, categoryID uuid.UUID, title string) (*Thread, error) {
	t := &Thread{
		ID:         uuid.New(),
		CategoryID: categoryID,
		AuthorID:   authorID,
		Title:      strings.TrimSpace(title),
	}
	if err := s.repo.InsertThread(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetLocked locks or unlocks a thread. Route-level checks already
// verified the actor holds the lock permission.
func (s *Service) SetLocked(ctx context.Context, actorID, id uuid.UUID, locked bool) (*Thread, error) {
	if err := s.repo.SetLocked(ctx, id, locked); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, flagAction("thread.lock", "thread.unlock", locked), id)
	return s.repo.GetThread(ctx, id)
}

// SetPinned pins or unpins a thread.
func (s *Service) SetPinned(ctx context.Context, actorID, id uuid.UUID, pinned bool) (*Thread, error) {
	if err := s.repo.SetPinned(ctx, id, pinned); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, flagAction("thread.pin", "thread.unpin", pinned), id)
	return s.repo.GetThread(ctx, id)
}

// Delete removes a thread. The author may always delete their own
// thread; anyone else needs the delete permission.
func (s *Service) Delete(ctx context.Context, actorID, id uuid.UUID) error {
	t, err := s.repo.GetThread(ctx, id)
	if err != nil {
		return err
	}
	if t.AuthorID != actorID {
		granted, err := s.perms.PermissionsFor(ctx, actorID)
		if err != nil {
			return err
		}
		if !rbac.HasPermission(granted, rbac.PermDeleteThread) {
			return ErrForbidden
		}
	}
	if err := s.repo.DeleteThread(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "thread.delete", id)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, threadID uuid.UUID) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "thread",
		EntityID: threadID.String(),
	}); err != nil && s.log != nil {
		s.log.Warn("audit record", slog.Any("error", err))
	}
}

func flagAction(on, off string, flag bool) string {
	if flag {
		return on
	}
	return off
}
