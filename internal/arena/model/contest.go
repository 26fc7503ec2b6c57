package model

import "time"

// ContestStatus is the tournament lifecycle state. OPEN and CLOSED
// swap freely; RUNNING is entered only from OPEN or CLOSED and exited
// only by the orchestrator reaching FINISHED or RUN_ERROR.
type ContestStatus string

const (
	ContestOpen     ContestStatus = "OPEN"
	ContestClosed   ContestStatus = "CLOSED"
	ContestRunning  ContestStatus = "RUNNING"
	ContestFinished ContestStatus = "FINISHED"
	ContestRunError ContestStatus = "RUN_ERROR"
)

// Contest is a round-robin tournament over registered bots.
//
// BotIDs are pairwise distinct (enforced by the registration path, a
// precondition here). MatchIDs is append-only while a run is in
// progress; once FINISHED its length equals C(n,2) for n bots.
// ScoreJSON maps bot id to total tournament points.
type Contest struct {
	ID        string
	GameID    string
	OwnerID   string
	Name      string
	Date      time.Time
	BotIDs    []string
	MatchIDs  []string
	Status    ContestStatus
	ScoreJSON *string
}
