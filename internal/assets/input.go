package assets

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"faulty-asset-tracker/internal/apperr"
	"faulty-asset-tracker/internal/models"
)

// AssetInput is the body of create and update requests. Update is a full
// replace, so both share the same required fields.
type AssetInput struct {
	Category         string   `json:"category"`
	AssetName        string   `json:"assetName"`
	TicketID         string   `json:"ticketId"`
	SerialNo         string   `json:"serialNo"`
	AssetTag         string   `json:"assetTag"`
	Branch           string   `json:"branch"`
	DateReceived     string   `json:"dateReceived"`
	ReceivedBy       string   `json:"receivedBy"`
	Vendor           string   `json:"vendor"`
	FaultReported    string   `json:"faultReported"`
	VendorPickupDate *string  `json:"vendorPickupDate"`
	RepairCost       *float64 `json:"repairCost"`
	Status           string   `json:"status"`
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// repairCostLimit is the exclusive upper bound of a numeric(18,2) column.
const repairCostLimit = 1e16

// Tags that collide with fixed routes under /api/assets.
var reservedTags = []string{"stats", "search"}

// validateTag rejects tags that cannot be addressed as a single path segment.
func validateTag(tag string) error {
	if strings.Contains(tag, "/") {
		return apperr.InvalidArgument("assetTag must not contain '/'")
	}
	if tag == "." || tag == ".." {
		return apperr.InvalidArgument("assetTag must not be %q", tag)
	}
	for _, r := range reservedTags {
		if strings.EqualFold(tag, r) {
			return apperr.InvalidArgument("assetTag %q is reserved", tag)
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// toModel validates the input and returns the record it describes. The
// returned record has no ID.
func (in AssetInput) toModel() (models.FaultyAsset, error) {
	a := models.FaultyAsset{
		Category:      strings.TrimSpace(in.Category),
		AssetName:     strings.TrimSpace(in.AssetName),
		TicketID:      strings.TrimSpace(in.TicketID),
		SerialNo:      strings.TrimSpace(in.SerialNo),
		AssetTag:      strings.TrimSpace(in.AssetTag),
		Branch:        strings.TrimSpace(in.Branch),
		ReceivedBy:    strings.TrimSpace(in.ReceivedBy),
		Vendor:        strings.TrimSpace(in.Vendor),
		FaultReported: strings.TrimSpace(in.FaultReported),
	}

	// maxLen mirrors the column sizes of models.FaultyAsset; 0 means unbounded.
	required := []struct {
		name   string
		value  string
		maxLen int
	}{
		{"category", a.Category, 100},
		{"assetName", a.AssetName, 200},
		{"ticketId", a.TicketID, 100},
		{"serialNo", a.SerialNo, 100},
		{"assetTag", a.AssetTag, 100},
		{"branch", a.Branch, 100},
		{"dateReceived", strings.TrimSpace(in.DateReceived), 0},
		{"receivedBy", a.ReceivedBy, 100},
		{"vendor", a.Vendor, 100},
		{"faultReported", a.FaultReported, 1000},
	}
	var missing []string
	for _, f := range required {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return a, apperr.InvalidArgument("missing required fields: %s", strings.Join(missing, ", "))
	}
	for _, f := range required {
		if f.maxLen > 0 && utf8.RuneCountInString(f.value) > f.maxLen {
			return a, apperr.InvalidArgument("%s must be at most %d characters", f.name, f.maxLen)
		}
	}
	if err := validateTag(a.AssetTag); err != nil {
		return a, err
	}

	received, ok := parseDate(strings.TrimSpace(in.DateReceived))
	if !ok {
		return a, apperr.InvalidArgument("dateReceived must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	a.DateReceived = received

	if in.VendorPickupDate != nil {
		if s := strings.TrimSpace(*in.VendorPickupDate); s != "" {
			pickup, ok := parseDate(s)
			if !ok {
				return a, apperr.InvalidArgument("vendorPickupDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
			}
			a.VendorPickupDate = &pickup
		}
	}

	if in.RepairCost != nil {
		cost := *in.RepairCost
		if math.IsNaN(cost) || math.IsInf(cost, 0) {
			return a, apperr.InvalidArgument("repairCost must be a number")
		}
		if cost < 0 {
			return a, apperr.InvalidArgument("repair cost cannot be negative")
		}
		if cost >= repairCostLimit {
			return a, apperr.InvalidArgument("repair cost must be below %.0f", repairCostLimit)
		}
		cost = math.Round(cost*100) / 100
		a.RepairCost = &cost
	}

	status, ok := ParseStatus(in.Status)
	if !ok {
		return a, apperr.InvalidArgument("status must be one of: %s", statusNames())
	}
	a.Status = string(status)

	return a, nil
}
