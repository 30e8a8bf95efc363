package version

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/gridlayout/internal/domain/activity"
	"github.com/rpggio/gridlayout/internal/domain/region"
	"github.com/rpggio/gridlayout/internal/repository"
)

// Service manages the draft, preview and publish lifecycle of layout
// versions. Versions are append-only; nothing rewrites a stored snapshot.
type Service struct {
	repo       Repository
	activities ActivityRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new version service.
func NewService(repo Repository, activities ActivityRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, activities: activities, logger: logger, now: time.Now}
}

// DraftRequest describes a new draft.
type DraftRequest struct {
	LayoutID  string
	CreatedBy string
	Notes     string
	Regions   []region.Region
}

// CreateDraft snapshots regions into a new DRAFT version.
func (s *Service) CreateDraft(ctx context.Context, tenantID string, req DraftRequest) (*Version, error) {
	if strings.TrimSpace(req.LayoutID) == "" {
		return nil, ErrInvalidInput
	}

	v := &Version{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		LayoutID:  req.LayoutID,
		Status:    StatusDraft,
		Notes:     req.Notes,
		Regions:   liveRegions(req.Regions),
		CreatedBy: req.CreatedBy,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, tenantID, v); err != nil {
		return nil, fmt.Errorf("creating draft: %w", err)
	}

	s.logger.Info("version drafted", "layout_id", v.LayoutID, "version_id", v.ID, "number", v.Number)
	s.logActivity(ctx, tenantID, v, activity.TypeVersionCreated, fmt.Sprintf("drafted version %d", v.Number))
	return v, nil
}

// Preview moves a DRAFT to PREVIEW.
func (s *Service) Preview(ctx context.Context, tenantID, id string) (*Version, error) {
	v, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(v.Status, StatusPreview); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, v.Status, StatusPreview); err != nil {
		return nil, s.mapWriteErr("previewing version", err)
	}
	v.Status = StatusPreview

	s.logActivity(ctx, tenantID, v, activity.TypeVersionPreviewed, fmt.Sprintf("previewing version %d", v.Number))
	return v, nil
}

// Publish makes id the layout's single PUBLISHED version, archiving the
// previous one. Notes, when non-empty, replace the version's notes.
func (s *Service) Publish(ctx context.Context, tenantID, id, notes string) (*Version, error) {
	v, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(v.Status, StatusPublished); err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.repo.Publish(ctx, tenantID, id, notes, at); err != nil {
		return nil, s.mapWriteErr("publishing version", err)
	}
	v.Status = StatusPublished
	v.PublishedAt = &at
	if notes != "" {
		v.Notes = notes
	}

	s.logger.Info("version published", "layout_id", v.LayoutID, "version_id", v.ID, "number", v.Number)
	s.logActivity(ctx, tenantID, v, activity.TypeVersionPublished, fmt.Sprintf("published version %d", v.Number))
	return v, nil
}

// Revert appends a new DRAFT whose regions equal the target version's.
// The target itself is left untouched.
func (s *Service) Revert(ctx context.Context, tenantID, id, userID string) (*Version, error) {
	target, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	v := &Version{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		LayoutID:     target.LayoutID,
		Status:       StatusDraft,
		Notes:        fmt.Sprintf("revert to version %d", target.Number),
		Regions:      region.CloneAll(target.Regions),
		CreatedBy:    userID,
		RevertedFrom: &target.ID,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, tenantID, v); err != nil {
		return nil, fmt.Errorf("reverting version: %w", err)
	}

	s.logger.Info("version reverted", "layout_id", v.LayoutID, "from", target.ID, "version_id", v.ID)
	s.logActivity(ctx, tenantID, v, activity.TypeVersionReverted, fmt.Sprintf("reverted to version %d as %d", target.Number, v.Number))
	return v, nil
}

// Get fetches a version by ID.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*Version, error) {
	v, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVersionNotFound
		}
		return nil, fmt.Errorf("getting version: %w", err)
	}
	return v, nil
}

// List returns a layout's versions, newest first.
func (s *Service) List(ctx context.Context, tenantID, layoutID string) ([]Version, error) {
	versions, err := s.repo.List(ctx, tenantID, layoutID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return versions, nil
}

// ListSummaries returns a layout's versions in listing form.
func (s *Service) ListSummaries(ctx context.Context, tenantID, layoutID string) ([]Summary, error) {
	versions, err := s.List(ctx, tenantID, layoutID)
	if err != nil {
		return nil, err
	}
	currentID, err := s.repo.CurrentID(ctx, tenantID, layoutID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	out := make([]Summary, 0, len(versions))
	for _, v := range versions {
		out = append(out, v.Summarize(currentID))
	}
	return out, nil
}

// Current returns the version the layout currently points at.
func (s *Service) Current(ctx context.Context, tenantID, layoutID string) (*Version, error) {
	id, err := s.repo.CurrentID(ctx, tenantID, layoutID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoCurrentVersion
		}
		return nil, fmt.Errorf("getting current version: %w", err)
	}
	return s.Get(ctx, tenantID, id)
}

func (s *Service) mapWriteErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrVersionNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *Service) logActivity(ctx context.Context, tenantID string, v *Version, kind activity.ActivityType, summary string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, tenantID, &activity.ActivityEntry{
		LayoutID:     v.LayoutID,
		UserID:       v.CreatedBy,
		VersionID:    &v.ID,
		ActivityType: kind,
		Summary:      summary,
	})
}

func liveRegions(regions []region.Region) []region.Region {
	out := make([]region.Region, 0, len(regions))
	for _, r := range regions {
		if !r.Deleted() {
			out = append(out, r.Clone())
		}
	}
	return out
}
