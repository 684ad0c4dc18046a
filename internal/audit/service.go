package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"faulty-asset-tracker/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry describes one change to one asset.
type Entry struct {
	AssetID uint
	Kind    models.AuditAction
	Action  string
	User    string
	UserID  *uint
	Before  any
	After   any
}

// Recorder appends audit rows. It writes through the caller's transaction so
// the entry commits or rolls back together with the change it describes.
type Recorder struct {
	now func() time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, e Entry) error {
	before, err := snapshot(e.Before)
	if err != nil {
		return fmt.Errorf("audit: encode before: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return fmt.Errorf("audit: encode after: %w", err)
	}

	row := models.AuditLog{
		AssetID:    e.AssetID,
		Kind:       e.Kind,
		Action:     e.Action,
		User:       e.User,
		UserID:     e.UserID,
		Timestamp:  r.now().UTC(),
		BeforeData: before,
		AfterData:  after,
	}
	if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("audit: write log: %w", err)
	}
	return nil
}

// snapshot never returns an empty value: a missing side is stored as the
// JSON literal null so the column is never SQL NULL.
func snapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return datatypes.JSON("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// newestFirst is the canonical audit ordering. Ties on timestamp fall back to
// insertion order. Columns are quoted by the dialect.
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "timestamp"}, Desc: true},
	{Column: clause.Column{Name: "id"}, Desc: true},
}}

// Trail returns every entry for assetID, newest first.
func Trail(ctx context.Context, db *gorm.DB, assetID uint) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	if err := db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order(newestFirst).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: load trail: %w", err)
	}
	return logs, nil
}

// Latest returns the most recent entry for each of the given assets. Assets
// without entries are absent from the map.
func Latest(ctx context.Context, db *gorm.DB, assetIDs []uint) (map[uint]models.AuditLog, error) {
	out := make(map[uint]models.AuditLog, len(assetIDs))
	if len(assetIDs) == 0 {
		return out, nil
	}

	var logs []models.AuditLog
	if err := db.WithContext(ctx).
		Where("asset_id IN ?", assetIDs).
		Order(newestFirst).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: load latest: %w", err)
	}
	for _, l := range logs {
		if _, seen := out[l.AssetID]; !seen {
			out[l.AssetID] = l
		}
	}
	return out, nil
}

type Filter struct {
	AssetID uint
	User    string
	Kind    models.AuditAction
	Limit   int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// List returns entries across all assets, newest first.
func List(ctx context.Context, db *gorm.DB, f Filter) ([]models.AuditLog, error) {
	q := db.WithContext(ctx).Model(&models.AuditLog{})
	if f.AssetID != 0 {
		q = q.Where("asset_id = ?", f.AssetID)
	}
	if f.User != "" {
		// "user" is reserved in Postgres, let the dialect quote it.
		q = q.Where(clause.Eq{Column: clause.Column{Name: "user"}, Value: f.User})
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	logs := []models.AuditLog{}
	if err := q.Order(newestFirst).Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return logs, nil
}
