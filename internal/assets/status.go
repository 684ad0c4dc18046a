package assets

import "strings"

// Status is the repair lifecycle state of an asset. Any status may follow any
// other; there is no transition table.
type Status string

const (
	StatusPending                    Status = "Pending"
	StatusInRepair                   Status = "In Repair"
	StatusRepaired                   Status = "Repaired"
	StatusEndOfLife                  Status = "EOL (End of Life)"
	StatusFixedAndDispatchedToBranch Status = "Fixed and Dispatched to Branch"
	StatusDispatchedToVendor         Status = "Dispatched to Vendor"
)

// Statuses lists every recognised status in display order.
var Statuses = []Status{
	StatusPending,
	StatusInRepair,
	StatusRepaired,
	StatusEndOfLife,
	StatusFixedAndDispatchedToBranch,
	StatusDispatchedToVendor,
}

func (s Status) Valid() bool {
	return s.rank() >= 0
}

func (s Status) rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseStatus matches exactly after trimming surrounding space.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	return st, st.Valid()
}

func statusNames() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
