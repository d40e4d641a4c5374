package session

// Area is one of the fixed requirement areas the interview must cover.
type Area string

// The eight requirement areas, in scheduling order. The queue manager covers
// every area before cycling back, scope first.
const (
	AreaScope         Area = "scope"
	AreaUsers         Area = "users"
	AreaConstraints   Area = "constraints"
	AreaNonfunctional Area = "nonfunctional"
	AreaInterfaces    Area = "interfaces"
	AreaData          Area = "data"
	AreaRisks         Area = "risks"
	AreaSuccess       Area = "success"
)

// Areas lists all requirement areas in their fixed scheduling order.
//
//nolint:gochecknoglobals // Intentional package-level constant for area ordering
var Areas = []Area{
	AreaScope,
	AreaUsers,
	AreaConstraints,
	AreaNonfunctional,
	AreaInterfaces,
	AreaData,
	AreaRisks,
	AreaSuccess,
}

// IsValidArea reports whether the string names a known requirement area.
func IsValidArea(area Area) bool {
	for _, a := range Areas {
		if a == area {
			return true
		}
	}
	return false
}

// AreaIndex returns the scheduling position of an area, or -1 if unknown.
func AreaIndex(area Area) int {
	for i, a := range Areas {
		if a == area {
			return i
		}
	}
	return -1
}
