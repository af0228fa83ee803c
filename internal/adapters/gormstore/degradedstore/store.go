package degradedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
)

// degradedProfile is the row shape; base and extension are kept as JSON documents.
type degradedProfile struct {
	ID            string    `gorm:"primaryKey;size:36"`
	IdentityID    string    `gorm:"uniqueIndex;size:255;not null"`
	Email         string    `gorm:"size:320"`
	Role          string    `gorm:"size:32;not null"`
	BaseJSON      string    `gorm:"type:text;not null"`
	ExtensionJSON string    `gorm:"type:text;not null"`
	Reason        string    `gorm:"type:text"`
	Status        string    `gorm:"index;size:32;not null"`
	Attempts      int       `gorm:"not null;default:0"`
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt     time.Time `gorm:"index;not null;autoUpdateTime:false"`
}

func (degradedProfile) TableName() string { return "degraded_profiles" }

// Store is a GORM implementation of degradedstore.Store (SQLite or Postgres).
type Store struct {
	db *gorm.DB
}

// NewStore migrates the degraded_profiles table and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil gorm db")
	}
	if err := db.AutoMigrate(&degradedProfile{}); err != nil {
		return nil, fmt.Errorf("migrate degraded_profiles: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, rec degradedstore.Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "identity_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "role", "base_json", "extension_json", "reason",
				"status", "attempts", "last_error", "updated_at",
			}),
		}).
		Create(&row).Error
}

func (s *Store) Get(ctx context.Context, id domain.IdentityID) (degradedstore.Record, error) {
	var row degradedProfile
	err := s.db.WithContext(ctx).Where("identity_id = ?", string(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return degradedstore.Record{}, degradedstore.ErrNotFound
		}
		return degradedstore.Record{}, err
	}
	return fromRow(row)
}

func (s *Store) ListPending(ctx context.Context, limit int) ([]degradedstore.Record, error) {
	q := s.db.WithContext(ctx).
		Where("status = ?", string(degradedstore.StatusPendingSync)).
		Order("updated_at ASC").
		Order("identity_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []degradedProfile
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]degradedstore.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) MarkAttempt(ctx context.Context, id domain.IdentityID, lastErr string, status degradedstore.Status, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": lastErr,
		"status":     string(status),
		"updated_at": at.UTC(),
	})
}

func (s *Store) MarkReconciled(ctx context.Context, id domain.IdentityID, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"last_error": "",
		"status":     string(degradedstore.StatusReconciled),
		"updated_at": at.UTC(),
	})
}

func (s *Store) update(ctx context.Context, id domain.IdentityID, cols map[string]any) error {
	res := s.db.WithContext(ctx).Model(&degradedProfile{}).Where("identity_id = ?", string(id)).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return degradedstore.ErrNotFound
	}
	return nil
}

func toRow(rec degradedstore.Record) (degradedProfile, error) {
	base, err := json.Marshal(rec.Base)
	if err != nil {
		return degradedProfile{}, fmt.Errorf("encode base: %w", err)
	}
	ext, err := json.Marshal(rec.Extension)
	if err != nil {
		return degradedProfile{}, fmt.Errorf("encode extension: %w", err)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	return degradedProfile{
		ID:            id,
		IdentityID:    string(rec.IdentityID),
		Email:         rec.Email,
		Role:          string(rec.Role),
		BaseJSON:      string(base),
		ExtensionJSON: string(ext),
		Reason:        rec.Reason,
		Status:        string(rec.Status),
		Attempts:      rec.Attempts,
		LastError:     rec.LastError,
		CreatedAt:     rec.CreatedAt.UTC(),
		UpdatedAt:     rec.UpdatedAt.UTC(),
	}, nil
}

func fromRow(row degradedProfile) (degradedstore.Record, error) {
	var base domain.BaseProfile
	if err := json.Unmarshal([]byte(row.BaseJSON), &base); err != nil {
		return degradedstore.Record{}, fmt.Errorf("decode base: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(row.ExtensionJSON), &raw); err != nil {
		return degradedstore.Record{}, fmt.Errorf("decode extension: %w", err)
	}
	return degradedstore.Record{
		ID:         row.ID,
		IdentityID: domain.IdentityID(row.IdentityID),
		Email:      row.Email,
		Base:       base,
		Role:       domain.Role(row.Role),
		Extension:  decodeValues(raw),
		Reason:     row.Reason,
		Status:     degradedstore.Status(row.Status),
		Attempts:   row.Attempts,
		LastError:  row.LastError,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}, nil
}

// decodeValues restores []string for JSON arrays.
func decodeValues(raw map[string]any) domain.Values {
	out := make(domain.Values, len(raw))
	for k, v := range raw {
		if arr, ok := v.([]any); ok {
			list := make([]string, 0, len(arr))
			for _, e := range arr {
				if s, ok := e.(string); ok {
					list = append(list, s)
				}
			}
			out[k] = list
			continue
		}
		out[k] = v
	}
	return out
}
