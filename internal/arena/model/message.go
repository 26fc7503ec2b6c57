package model

// Queue names and the job/result payloads exchanged over them.
// Completion payloads carry ids only; subscribers re-fetch the entity
// for current state.

const (
	QueueCheckBot = "arena.jobs.check-bot"
	QueueRunMatch = "arena.jobs.run-match"
)

// CheckBotJob asks a checker worker to build-verify one bot.
type CheckBotJob struct {
	BotID           string `json:"botId"`
	CallbackChannel string `json:"callbackChannel"`
}

// CheckBotDone is published on the job's callback channel when the
// check reaches a terminal stage (success or error alike).
type CheckBotDone struct {
	UserID string `json:"userId"`
	BotID  string `json:"botId"`
}

// RunMatchJob asks a match runner worker to execute one match.
type RunMatchJob struct {
	MatchID         string `json:"matchId"`
	CallbackChannel string `json:"callbackChannel"`
}

// MatchDone is published on the job's callback channel when the match
// reaches a terminal stage.
type MatchDone struct {
	UserID  string `json:"userId"`
	MatchID string `json:"matchId"`
}
