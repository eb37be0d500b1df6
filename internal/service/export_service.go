package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"familytasks/internal/models"
	"familytasks/internal/repository"
	"familytasks/internal/telemetry"
)

// ExportVersion is the format version written by Export
const ExportVersion = "1.0"

// ExportData is a point-in-time snapshot of every family, task and pending handoff
type ExportData struct {
	Version       string               `json:"version"`
	ExportedAt    time.Time            `json:"exported_at"`
	DatabaseType  string               `json:"database_type"`
	Families      []FamilyExport       `json:"families"`
	Tasks         []TaskExport         `json:"tasks"`
	Reassignments []ReassignmentExport `json:"pending_reassignments"`
}

// FamilyExport represents a family record in an export
type FamilyExport struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	InviteCode  string         `json:"invite_code,omitempty"`
	CreatedBy   string         `json:"created_by"`
	MaxMembers  int            `json:"max_members"`
	IsPremium   bool           `json:"is_premium"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DissolvedAt *time.Time     `json:"dissolved_at,omitempty"`
	Members     []MemberExport `json:"members"`
}

// MemberExport represents a family member in an export
type MemberExport struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// TaskExport represents a task in an export
type TaskExport struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	AssignedTo  string     `json:"assigned_to"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CreatedBy   string     `json:"created_by"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ReassignmentExport represents an unfinished task handoff in an export
type ReassignmentExport struct {
	FamilyID        string    `json:"family_id"`
	UserID          string    `json:"user_id"`
	FallbackOwnerID string    `json:"fallback_owner_id"`
	RequestedBy     string    `json:"requested_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExportService writes JSON snapshots of the store. There is no import: a
// restore would bypass the membership rules enforced by the other services.
type ExportService struct {
	engine
}

// NewExportService creates a new export service
func NewExportService(store *repository.Store, logger zerolog.Logger, opts ...Option) *ExportService {
	return &ExportService{engine: newEngine(store, logger, opts)}
}

// Snapshot reads every family, task and pending reassignment in one transaction
func (s *ExportService) Snapshot(ctx context.Context) (data *ExportData, err error) {
	ctx, span := telemetry.StartSpan(ctx, "family.Export")
	defer func() { telemetry.EndSpan(span, err) }()

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx *repository.Tx) error {
		data = &ExportData{
			Version:       ExportVersion,
			ExportedAt:    s.now(),
			DatabaseType:  s.store.DB().GetDialect().DriverName(),
			Families:      []FamilyExport{},
			Tasks:         []TaskExport{},
			Reassignments: []ReassignmentExport{},
		}

		families, err := tx.Families.ListFamilies(ctx)
		if err != nil {
			return fmt.Errorf("failed to export families: %w", err)
		}
		for _, f := range families {
			data.Families = append(data.Families, exportFamily(f))

			tasks, err := tx.Tasks.GetTasksByFamily(ctx, f.ID)
			if err != nil {
				return fmt.Errorf("failed to export tasks of family %s: %w", f.ID, err)
			}
			for _, t := range tasks {
				data.Tasks = append(data.Tasks, exportTask(t))
			}
		}

		pending, err := tx.Reassignments.ListPending(ctx)
		if err != nil {
			return fmt.Errorf("failed to export pending reassignments: %w", err)
		}
		for _, p := range pending {
			data.Reassignments = append(data.Reassignments, ReassignmentExport{
				FamilyID:        p.FamilyID,
				UserID:          p.UserID,
				FallbackOwnerID: p.FallbackOwnerID,
				RequestedBy:     p.RequestedBy,
				CreatedAt:       p.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Export writes an indented JSON snapshot to w
func (s *ExportService) Export(ctx context.Context, w io.Writer) error {
	data, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	s.logger.Info().
		Int("families", len(data.Families)).
		Int("tasks", len(data.Tasks)).
		Int("pending_reassignments", len(data.Reassignments)).
		Msg("store exported")
	return nil
}

func exportFamily(f models.Family) FamilyExport {
	out := FamilyExport{
		ID:          f.ID,
		Name:        f.Name,
		InviteCode:  f.InviteCode,
		CreatedBy:   f.CreatedBy,
		MaxMembers:  f.MaxMembers,
		IsPremium:   f.IsPremium,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		DissolvedAt: f.DissolvedAt,
		Members:     make([]MemberExport, 0, len(f.Members)),
	}
	for _, m := range f.Members {
		out.Members = append(out.Members, MemberExport{
			UserID:   m.UserID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return out
}

func exportTask(t models.Task) TaskExport {
	return TaskExport{
		ID:          t.ID,
		FamilyID:    t.FamilyID,
		AssignedTo:  t.AssignedTo,
		Title:       t.Title,
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy,
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
