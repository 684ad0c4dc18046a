package assets

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/audit"
	"faulty-asset-tracker/internal/models"

	"gorm.io/gorm"
)

// AssetView is an asset with its last-modified projection taken from the
// newest audit entry. Both projection fields are nil when no entry exists.
type AssetView struct {
	models.FaultyAsset
	LastModifiedBy *string    `json:"lastModifiedBy"`
	LastModifiedAt *time.Time `json:"lastModifiedAt"`
}

type SortOrder string

const (
	SortLatest      SortOrder = "latest"
	SortStatus      SortOrder = "status"
	SortCostHighLow SortOrder = "costHighLow"
	SortCostLowHigh SortOrder = "costLowHigh"
	SortAssetTag    SortOrder = "assetTag"
)

type ListOptions struct {
	Status string
	Sort   SortOrder
}

func (s *Service) ListAll(ctx context.Context, opts ListOptions) ([]AssetView, error) {
	q := s.db.WithContext(ctx).Model(&models.FaultyAsset{})
	if opts.Status != "" {
		st, ok := ParseStatus(opts.Status)
		if !ok {
			return nil, apperr.InvalidArgument("status must be one of: %s", statusNames())
		}
		q = q.Where("status = ?", string(st))
	}

	less, err := sorter(opts.Sort)
	if err != nil {
		return nil, err
	}

	var rows []models.FaultyAsset
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, apperr.Internal(err, "list assets")
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })

	return s.project(ctx, rows)
}

func (s *Service) GetByTag(ctx context.Context, assetTag string) (*AssetView, error) {
	a, err := s.findByTag(ctx, assetTag)
	if err != nil {
		return nil, err
	}
	views, err := s.project(ctx, []models.FaultyAsset{a})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchByTag returns assets whose tag contains query, ignoring case.
func (s *Service) SearchByTag(ctx context.Context, query string) ([]AssetView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidArgument("assetTag query is required")
	}

	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	var rows []models.FaultyAsset
	if err := s.db.WithContext(ctx).
		Where(`LOWER(asset_tag) LIKE ? ESCAPE '\'`, pattern).
		Order("asset_tag ASC").
		Find(&rows).Error; err != nil {
		return nil, apperr.Internal(err, "search assets")
	}
	return s.project(ctx, rows)
}

// Stats counts assets per status. Every recognised status is present, with
// zero when nothing matches.
type Stats struct {
	TotalAssets                int64            `json:"totalAssets"`
	ByStatus                   map[string]int64 `json:"byStatus"`
	Pending                    int64            `json:"pending"`
	InRepair                   int64            `json:"inRepair"`
	Repaired                   int64            `json:"repaired"`
	EndOfLife                  int64            `json:"endOfLife"`
	FixedAndDispatchedToBranch int64            `json:"fixedAndDispatchedToBranch"`
	DispatchedToVendor         int64            `json:"dispatchedToVendor"`
	TotalRepairCost            float64          `json:"totalRepairCost"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var rows []struct {
		Status string
		Count  int64
		Cost   float64
	}
	if err := s.db.WithContext(ctx).
		Model(&models.FaultyAsset{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(repair_cost), 0) AS cost").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperr.Internal(err, "aggregate assets")
	}

	st := &Stats{ByStatus: make(map[string]int64, len(Statuses))}
	for _, status := range Statuses {
		st.ByStatus[string(status)] = 0
	}

	var cost float64
	for _, r := range rows {
		st.TotalAssets += r.Count
		cost += r.Cost
		if Status(r.Status).Valid() {
			st.ByStatus[r.Status] = r.Count
		}
	}
	st.TotalRepairCost = math.Round(cost*100) / 100

	st.Pending = st.ByStatus[string(StatusPending)]
	st.InRepair = st.ByStatus[string(StatusInRepair)]
	st.Repaired = st.ByStatus[string(StatusRepaired)]
	st.EndOfLife = st.ByStatus[string(StatusEndOfLife)]
	st.FixedAndDispatchedToBranch = st.ByStatus[string(StatusFixedAndDispatchedToBranch)]
	st.DispatchedToVendor = st.ByStatus[string(StatusDispatchedToVendor)]
	return st, nil
}

// AuditTrail returns the audit entries of the asset currently tagged
// assetTag, newest first.
func (s *Service) AuditTrail(ctx context.Context, assetTag string) ([]models.AuditLog, error) {
	a, err := s.findByTag(ctx, assetTag)
	if err != nil {
		return nil, err
	}
	logs, err := audit.Trail(ctx, s.db, a.ID)
	if err != nil {
		return nil, apperr.Internal(err, "load audit trail")
	}
	return logs, nil
}

func (s *Service) findByTag(ctx context.Context, assetTag string) (models.FaultyAsset, error) {
	var a models.FaultyAsset
	if err := s.db.WithContext(ctx).Where("asset_tag = ?", assetTag).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return a, apperr.NotFound("asset %q not found", assetTag)
		}
		return a, apperr.Internal(err, "load asset")
	}
	return a, nil
}

func (s *Service) project(ctx context.Context, rows []models.FaultyAsset) ([]AssetView, error) {
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	latest, err := audit.Latest(ctx, s.db, ids)
	if err != nil {
		return nil, apperr.Internal(err, "load audit projection")
	}

	views := make([]AssetView, len(rows))
	for i, r := range rows {
		views[i].FaultyAsset = r
		if l, ok := latest[r.ID]; ok {
			by, at := l.User, l.Timestamp
			views[i].LastModifiedBy = &by
			views[i].LastModifiedAt = &at
		}
	}
	return views, nil
}

// sorter returns the ordering for o. Rows arrive newest first, and the sort is
// stable, so ties keep that order.
func sorter(o SortOrder) (func(a, b models.FaultyAsset) bool, error) {
	switch o {
	case "", SortLatest:
		return func(a, b models.FaultyAsset) bool { return false }, nil
	case SortStatus:
		return func(a, b models.FaultyAsset) bool {
			return statusRank(a.Status) < statusRank(b.Status)
		}, nil
	case SortCostHighLow:
		return byCost(true), nil
	case SortCostLowHigh:
		return byCost(false), nil
	case SortAssetTag:
		return func(a, b models.FaultyAsset) bool {
			return strings.ToLower(a.AssetTag) < strings.ToLower(b.AssetTag)
		}, nil
	default:
		return nil, apperr.InvalidArgument("sort must be one of: latest, status, costHighLow, costLowHigh, assetTag")
	}
}

// Unknown statuses sort last.
func statusRank(s string) int {
	if r := Status(s).rank(); r >= 0 {
		return r
	}
	return len(Statuses)
}

// byCost orders by repair cost. Assets without a cost always come last.
func byCost(desc bool) func(a, b models.FaultyAsset) bool {
	return func(a, b models.FaultyAsset) bool {
		switch {
		case a.RepairCost == nil:
			return false
		case b.RepairCost == nil:
			return true
		case desc:
			return *a.RepairCost > *b.RepairCost
		default:
			return *a.RepairCost < *b.RepairCost
		}
	}
}
