package shares

import (
	"github.com/simaogato/investpool-backend/internal/domain"
)

// MemberView pairs a member with its derived statistics
type MemberView struct {
	Member domain.Member
	Stats  MemberStats
}

// PoolView is the read-only projection of a pool record returned to callers
type PoolView struct {
	Record  *domain.PoolRecord
	Summary PoolSummary
	Members []MemberView
}

// View projects a pool record into its presentation form
func View(pool *domain.PoolRecord) *PoolView {
	members := make([]MemberView, 0, len(pool.Members))
	for i := range pool.Members {
		members = append(members, MemberView{
			Member: pool.Members[i],
			Stats:  Stats(&pool.Members[i], pool),
		})
	}
	return &PoolView{
		Record:  pool,
		Summary: Summary(pool),
		Members: members,
	}
}
