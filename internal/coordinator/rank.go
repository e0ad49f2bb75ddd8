package coordinator

import (
	"sort"

	"github.com/alanyoungcy/paperarena/internal/domain"
)

// BuildLeaderboard ranks agents by total portfolio value descending and
// assigns 1-based ranks. Ties break on agent id so the ordering is stable
// across calls.
func BuildLeaderboard(views map[string]domain.PortfolioView, initialCapital map[string]float64) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(views))
	for agentID, view := range views {
		totalPnL := view.TotalRealizedPnL + view.TotalUnrealizedPnL
		returnPct := 0.0
		if capital := initialCapital[agentID]; capital > 0 {
			returnPct = (view.TotalValue - capital) / capital * 100
		}
		entries = append(entries, domain.LeaderboardEntry{
			AgentID:        agentID,
			PortfolioValue: view.TotalValue,
			TotalPnL:       totalPnL,
			ReturnPct:      returnPct,
			TradeCount:     view.TradeCount,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PortfolioValue != entries[j].PortfolioValue {
			return entries[i].PortfolioValue > entries[j].PortfolioValue
		}
		return entries[i].AgentID < entries[j].AgentID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
