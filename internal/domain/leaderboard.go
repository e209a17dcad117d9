package domain

import "sort"

// LeaderboardEntry is a player's ranked standing after the latest tally.
// PreviousRank is the rank from the computation before this one (0 when the
// player had not been ranked yet).
type LeaderboardEntry struct {
	PlayerID     string
	Nickname     string
	Score        int
	Rank         int
	PreviousRank int
}

// leaderboard is recomputed wholesale on every results tally. It keeps the
// ordering of the previous computation so score ties do not flicker ranks.
type leaderboard struct {
	entries []LeaderboardEntry
}

func (l *leaderboard) recompute(players []Player) {
	previous := make(map[string]int, len(l.entries))
	order := make(map[string]int, len(l.entries))
	for i, e := range l.entries {
		previous[e.PlayerID] = e.Rank
		order[e.PlayerID] = i
	}

	entries := make([]LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, LeaderboardEntry{
			PlayerID:     p.PlayerID,
			Nickname:     p.Nickname,
			Score:        p.Score,
			PreviousRank: previous[p.PlayerID],
		})
	}

	// Seed with the previous ranking order, newcomers after by id, so the
	// stable sort below preserves relative order on score ties.
	sort.SliceStable(entries, func(i, j int) bool {
		oi, ranked := order[entries[i].PlayerID]
		oj, rankedJ := order[entries[j].PlayerID]
		if ranked && rankedJ {
			return oi < oj
		}
		if ranked != rankedJ {
			return ranked
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	l.entries = entries
}

// top returns the first k entries, or all of them when k <= 0 or exceeds the
// board size.
func (l *leaderboard) top(k int) []LeaderboardEntry {
	n := len(l.entries)
	if k <= 0 || k > n {
		k = n
	}
	out := make([]LeaderboardEntry, k)
	copy(out, l.entries[:k])
	return out
}

func (l *leaderboard) entry(playerID string) (LeaderboardEntry, bool) {
	for _, e := range l.entries {
		if e.PlayerID == playerID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}
