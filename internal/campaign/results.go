package campaign

import (
	"sync"

	"insta-outreach/internal/core/domain"
)

// resultSet collects one record per discovered user. Each user owns a slot, so
// completions merge commutatively and a late or repeated write is ignored.
type resultSet struct {
	mu     sync.Mutex
	users  []string
	slots  []*domain.ResultRecord
	sealed bool
}

func newResultSet(users []string) *resultSet {
	return &resultSet{users: users, slots: make([]*domain.ResultRecord, len(users))}
}

func (s *resultSet) add(i int, rec domain.ResultRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed || s.slots[i] != nil {
		return false
	}
	s.slots[i] = &rec
	return true
}

// seal stops accepting records and fills every empty slot with a failure
// carrying reason.
func (s *resultSet) seal(reason string) []domain.ResultRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	out := make([]domain.ResultRecord, len(s.slots))
	for i, r := range s.slots {
		if r == nil {
			out[i] = domain.Failure(s.users[i], reason)
			continue
		}
		out[i] = *r
	}
	return out
}
