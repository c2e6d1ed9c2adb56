package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"go.uber.org/zap"
)

// Activity actions recorded by the services.
const (
	ActionOrganizationCreated = "organization.created"
	ActionOrganizationRenamed = "organization.renamed"
	ActionMemberRoleChanged   = "member.role_changed"
	ActionMemberRemoved       = "member.removed"
	ActionMemberLeft          = "member.left"
	ActionInvitationCreated   = "invitation.created"
	ActionInvitationDeleted   = "invitation.deleted"
	ActionInvitationAccepted  = "invitation.accepted"
	ActionProjectCreated      = "project.created"
	ActionProjectUpdated      = "project.updated"
	ActionProjectDeleted      = "project.deleted"
	ActionTaskCreated         = "task.created"
	ActionTaskUpdated         = "task.updated"
	ActionTaskDeleted         = "task.deleted"
	ActionTaskAssigned        = "task.assigned"
	ActionTaskUnassigned      = "task.unassigned"
)

// ActivityEntry describes one mutation for the audit trail.
type ActivityEntry struct {
	OrganizationID string
	ActorID        string
	Action         string
	ResourceType   string
	ResourceID     string
	Metadata       map[string]string
}

// ActivityService writes and reads the per-organization audit trail.
type ActivityService struct {
	repo repository.ActivityRepository
	log  *zap.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(repo repository.ActivityRepository, log *zap.Logger) *ActivityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityService{repo: repo, log: log}
}

// Record stores entry. A failed write is logged and does not fail the
// mutation that triggered it.
func (s *ActivityService) Record(ctx context.Context, entry ActivityEntry) {
	if s == nil {
		return
	}

	log := &models.ActivityLog{
		OrganizationID: entry.OrganizationID,
		ActorID:        entry.ActorID,
		Action:         entry.Action,
		ResourceType:   entry.ResourceType,
		ResourceID:     entry.ResourceID,
	}
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err == nil {
			log.Metadata = string(data)
		}
	}

	if err := s.repo.Create(ctx, log); err != nil {
		s.log.Warn("failed to record activity",
			zap.String("action", entry.Action),
			zap.String("organization_id", entry.OrganizationID),
			zap.Error(err),
		)
	}
}

// List returns a page of the organization's audit trail.
func (s *ActivityService) List(ctx context.Context, organizationID string, page, pageSize int) ([]models.ActivityLog, int64, error) {
	entries, total, err := s.repo.List(ctx, organizationID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, total, nil
}
