package assets

import (
	"context"
	"errors"
	"time"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/audit"
	"faulty-asset-tracker/internal/auth"
	"faulty-asset-tracker/internal/events"
	"faulty-asset-tracker/internal/metrics"
	"faulty-asset-tracker/internal/models"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditSink appends one audit entry using the caller's transaction.
type AuditSink interface {
	Record(ctx context.Context, tx *gorm.DB, e audit.Entry) error
}

type Options struct {
	Sink    AuditSink
	Events  events.Publisher
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

// Service applies asset mutations and their audit entries atomically and
// serves the read side.
type Service struct {
	db      *gorm.DB
	sink    AuditSink
	events  events.Publisher
	metrics *metrics.Metrics
	log     zerolog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewService(db *gorm.DB, opts Options) *Service {
	s := &Service{
		db:      db,
		sink:    opts.Sink,
		events:  opts.Events,
		metrics: opts.Metrics,
		log:     opts.Log.With().Str("component", "assets").Logger(),
		tracer:  otel.Tracer("faulty-asset-tracker/assets"),
		now:     time.Now,
	}
	if s.sink == nil {
		s.sink = audit.NewRecorder()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	return s
}

var (
	writerRoles = []string{models.RoleAdmin, models.RoleEmployee}
	deleteRoles = []string{models.RoleAdmin}
)

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func (s *Service) CreateAsset(ctx context.Context, p auth.Principal, in AssetInput) (_ *models.FaultyAsset, err error) {
	ctx, span := s.tracer.Start(ctx, "assets.CreateAsset", trace.WithAttributes(attribute.String("asset.tag", in.AssetTag)))
	defer func() { s.finish(span, "create", err) }()

	if !p.HasAnyRole(writerRoles...) {
		return nil, apperr.Forbidden("you are not allowed to create assets")
	}

	asset, err := in.toModel()
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.FaultyAsset{}).
			Where("serial_no = ? OR asset_tag = ?", asset.SerialNo, asset.AssetTag).
			Count(&count).Error; err != nil {
			return apperr.Internal(err, "check duplicates")
		}
		if count > 0 {
			return apperr.Conflict("an asset with this serial number or asset tag already exists")
		}

		if err := tx.Create(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("an asset with this serial number or asset tag already exists")
			}
			return apperr.Internal(err, "create asset")
		}

		return s.record(ctx, tx, p, audit.Entry{
			AssetID: asset.ID,
			Kind:    models.AuditActionCreate,
			Action:  "created asset " + asset.SerialNo,
			After:   asset,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AuditEntry(string(models.AuditActionCreate))
	s.publish(ctx, events.SubjectAssetCreated, &asset, p)
	s.log.Info().Str("assetTag", asset.AssetTag).Str("user", p.AuditName()).Msg("asset created")
	return &asset, nil
}

// UpdateAsset replaces every editable field of the asset currently tagged
// assetTag. The tag itself may change if the new one is unused.
func (s *Service) UpdateAsset(ctx context.Context, p auth.Principal, assetTag string, in AssetInput) (err error) {
	ctx, span := s.tracer.Start(ctx, "assets.UpdateAsset", trace.WithAttributes(attribute.String("asset.tag", assetTag)))
	defer func() { s.finish(span, "update", err) }()

	if !p.HasAnyRole(writerRoles...) {
		return apperr.Forbidden("you are not allowed to update assets")
	}

	next, err := in.toModel()
	if err != nil {
		return err
	}

	var updated models.FaultyAsset
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.lockByTag(tx, assetTag)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.FaultyAsset{}).
			Where("(serial_no = ? OR asset_tag = ?) AND id <> ?", next.SerialNo, next.AssetTag, existing.ID).
			Count(&count).Error; err != nil {
			return apperr.Internal(err, "check duplicates")
		}
		if count > 0 {
			return apperr.Conflict("another asset already uses this serial number or asset tag")
		}

		res := tx.Model(&models.FaultyAsset{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"category":           next.Category,
				"asset_name":         next.AssetName,
				"ticket_id":          next.TicketID,
				"serial_no":          next.SerialNo,
				"asset_tag":          next.AssetTag,
				"branch":             next.Branch,
				"date_received":      next.DateReceived,
				"received_by":        next.ReceivedBy,
				"vendor":             next.Vendor,
				"fault_reported":     next.FaultReported,
				"vendor_pickup_date": next.VendorPickupDate,
				"repair_cost":        next.RepairCost,
				"status":             next.Status,
			})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("another asset already uses this serial number or asset tag")
			}
			return apperr.Internal(res.Error, "update asset")
		}
		// The row was removed between the read and the write.
		if res.RowsAffected == 0 {
			return apperr.NotFound("asset %q not found", assetTag)
		}

		if err := tx.First(&updated, existing.ID).Error; err != nil {
			return apperr.Internal(err, "reload asset")
		}

		return s.record(ctx, tx, p, audit.Entry{
			AssetID: existing.ID,
			Kind:    models.AuditActionUpdate,
			Action:  "updated asset " + updated.AssetTag,
			Before:  existing,
			After:   updated,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.AuditEntry(string(models.AuditActionUpdate))
	s.publish(ctx, events.SubjectAssetUpdated, &updated, p)
	s.log.Info().Str("assetTag", updated.AssetTag).Str("user", p.AuditName()).Msg("asset updated")
	return nil
}

func (s *Service) DeleteAsset(ctx context.Context, p auth.Principal, assetTag string) (err error) {
	ctx, span := s.tracer.Start(ctx, "assets.DeleteAsset", trace.WithAttributes(attribute.String("asset.tag", assetTag)))
	defer func() { s.finish(span, "delete", err) }()

	if !p.HasAnyRole(deleteRoles...) {
		return apperr.Forbidden("only admins can delete assets")
	}

	var removed models.FaultyAsset
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.lockByTag(tx, assetTag)
		if err != nil {
			return err
		}
		removed = existing

		res := tx.Delete(&models.FaultyAsset{}, existing.ID)
		if res.Error != nil {
			return apperr.Internal(res.Error, "delete asset")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("asset %q not found", assetTag)
		}

		// The serial is taken from the row read before deletion.
		return s.record(ctx, tx, p, audit.Entry{
			AssetID: existing.ID,
			Kind:    models.AuditActionDelete,
			Action:  "deleted asset " + existing.SerialNo,
			Before:  existing,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.AuditEntry(string(models.AuditActionDelete))
	s.publish(ctx, events.SubjectAssetDeleted, &removed, p)
	s.log.Info().Str("assetTag", removed.AssetTag).Str("user", p.AuditName()).Msg("asset deleted")
	return nil
}

// lockByTag loads the asset for a read-modify-write. Row locks are only
// requested where the dialect supports them.
func (s *Service) lockByTag(tx *gorm.DB, assetTag string) (models.FaultyAsset, error) {
	var a models.FaultyAsset
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("asset_tag = ?", assetTag).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a, apperr.NotFound("asset %q not found", assetTag)
		}
		return a, apperr.Internal(err, "load asset")
	}
	return a, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, p auth.Principal, e audit.Entry) error {
	e.User = p.AuditName()
	e.UserID = p.UserIDPtr()
	if err := s.sink.Record(ctx, tx, e); err != nil {
		return apperr.Internal(err, "append audit log")
	}
	return nil
}

// publish is best effort: the change has already committed.
func (s *Service) publish(ctx context.Context, subject string, a *models.FaultyAsset, p auth.Principal) {
	evt := events.AssetEvent{
		AssetID:    a.ID,
		AssetTag:   a.AssetTag,
		SerialNo:   a.SerialNo,
		Status:     a.Status,
		User:       p.AuditName(),
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(ctx, subject, evt); err != nil {
		s.metrics.PublishFailed()
		s.log.Warn().Err(err).Str("subject", subject).Str("assetTag", a.AssetTag).Msg("event publish failed")
	}
}

func (s *Service) finish(span trace.Span, op string, err error) {
	s.metrics.Mutation(op, err)
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.Error().Err(err).Str("op", op).Msg("asset mutation failed")
	}
	span.End()
}
