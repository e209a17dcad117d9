package domain

// Player is a roster entry. The aggregate owns all mutation: a player is
// created on join and its score/streak change only when a question tally runs.
type Player struct {
	PlayerID string
	Nickname string
	Score    int
	Streak   int
	Guest    bool
}
