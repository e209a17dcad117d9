package api

import (
	"github.com/victornm/qrally/internal/domain"
)

// Wire payloads shared by the HTTP responses and the pub/sub notifications.

type (
	Lobby struct {
		Players []LobbyPlayer `json:"players"`
		Count   int           `json:"count"`
	}

	LobbyPlayer struct {
		PlayerID string `json:"player_id"`
		Nickname string `json:"nickname"`
		Guest    bool   `json:"guest"`
	}

	Question struct {
		QuestionID       string   `json:"question_id"`
		Position         int      `json:"position"`
		Total            int      `json:"total"`
		Type             string   `json:"type"`
		Prompt           string   `json:"prompt"`
		TimeLimitSeconds int      `json:"time_limit_seconds"`
		Options          []Option `json:"options"`
	}

	Option struct {
		OptionID   string `json:"option_id"`
		OptionText string `json:"option_text"`
	}

	Results struct {
		QuestionID         string             `json:"question_id"`
		CorrectOptionIDs   []string           `json:"correct_option_ids"`
		Leaderboard        []LeaderboardEntry `json:"leaderboard"`
		AnswerDistribution map[int]int        `json:"answer_distribution"`
		Progress           Progress           `json:"progress"`
	}

	LeaderboardEntry struct {
		PlayerID     string `json:"player_id"`
		Nickname     string `json:"nickname"`
		Score        int    `json:"score"`
		Rank         int    `json:"rank"`
		PreviousRank int    `json:"previous_rank"`
	}

	Progress struct {
		CurrentQuestionID  string `json:"current_question_id"`
		PreviousQuestionID string `json:"previous_question_id,omitempty"`
		TotalQuestions     int    `json:"total_questions"`
		AnsweredCount      int    `json:"answered_count"`
	}

	End struct {
		Podium            []LeaderboardEntry `json:"podium"`
		Winner            LeaderboardEntry   `json:"winner"`
		TotalParticipants int                `json:"total_participants"`
	}

	PlayerRecap struct {
		PlayerID    string `json:"player_id"`
		Rank        int    `json:"rank"`
		TotalScore  int    `json:"total_score"`
		IsPodium    bool   `json:"is_podium"`
		IsWinner    bool   `json:"is_winner"`
		FinalStreak int    `json:"final_streak"`
	}
)

func lobbyPayload(v domain.LobbyView) Lobby {
	players := make([]LobbyPlayer, 0, len(v.Players))
	for _, p := range v.Players {
		players = append(players, LobbyPlayer{
			PlayerID: p.PlayerID,
			Nickname: p.Nickname,
			Guest:    p.Guest,
		})
	}
	return Lobby{Players: players, Count: v.Count}
}

func questionPayload(v domain.QuestionView) Question {
	options := make([]Option, 0, len(v.Options))
	for _, o := range v.Options {
		options = append(options, Option{
			OptionID:   o.OptionID,
			OptionText: o.OptionText,
		})
	}
	return Question{
		QuestionID:       v.QuestionID,
		Position:         v.Position,
		Total:            v.Total,
		Type:             string(v.Type),
		Prompt:           v.Prompt,
		TimeLimitSeconds: int(v.TimeLimit.Seconds()),
		Options:          options,
	}
}

func resultsPayload(v domain.ResultsView) Results {
	return Results{
		QuestionID:         v.QuestionID,
		CorrectOptionIDs:   v.CorrectOptionIDs,
		Leaderboard:        leaderboardPayload(v.Leaderboard),
		AnswerDistribution: v.AnswerDistribution,
		Progress: Progress{
			CurrentQuestionID:  v.Progress.CurrentQuestionID,
			PreviousQuestionID: v.Progress.PreviousQuestionID,
			TotalQuestions:     v.Progress.TotalQuestions,
			AnsweredCount:      v.Progress.AnsweredCount,
		},
	}
}

func leaderboardPayload(entries []domain.LeaderboardEntry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LeaderboardEntry{
			PlayerID:     e.PlayerID,
			Nickname:     e.Nickname,
			Score:        e.Score,
			Rank:         e.Rank,
			PreviousRank: e.PreviousRank,
		})
	}
	return out
}

func endPayload(v domain.EndView) End {
	return End{
		Podium: leaderboardPayload(v.Podium),
		Winner: LeaderboardEntry{
			PlayerID:     v.Winner.PlayerID,
			Nickname:     v.Winner.Nickname,
			Score:        v.Winner.Score,
			Rank:         v.Winner.Rank,
			PreviousRank: v.Winner.PreviousRank,
		},
		TotalParticipants: v.TotalParticipants,
	}
}

func playerRecapPayload(v domain.PlayerRecap) PlayerRecap {
	return PlayerRecap{
		PlayerID:    v.PlayerID,
		Rank:        v.Rank,
		TotalScore:  v.TotalScore,
		IsPodium:    v.IsPodium,
		IsWinner:    v.IsWinner,
		FinalStreak: v.FinalStreak,
	}
}
