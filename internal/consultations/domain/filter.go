package domain

// Filter is a predicate over stored consultations. Zero fields match all.
type Filter struct {
	ClientID string
	ExpertID string
	// OpenOnly restricts to Pending open requests with no expert.
	OpenOnly bool
	Statuses []Status
	Limit    int
	Offset   int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Normalized clamps the paging fields.
func (f Filter) Normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches evaluates the filter in memory.
func (f Filter) Matches(c Consultation) bool {
	if f.ClientID != "" && c.ClientID != f.ClientID {
		return false
	}
	if f.ExpertID != "" && c.AssignedExpert() != f.ExpertID {
		return false
	}
	if f.OpenOnly && !(c.Status == StatusPending && c.IsOpenRequest && c.ExpertID == nil) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == c.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
