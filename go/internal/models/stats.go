package models

// PlayerStats are a player's aggregate results across finished matches.
type PlayerStats struct {
	PlayerID    string `json:"player_id"`
	GamesPlayed int    `json:"games_played"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	TotalScore  int    `json:"total_score"`
	Highscore   int    `json:"highscore"`
}
