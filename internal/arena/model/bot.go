package model

import "fmt"

// SubmitStage is a node in the bot submission state machine. The API
// tier moves a bot from Registered to SourceUploadDone; the checker
// worker owns the two terminal stages.
type SubmitStage string

const (
	SubmitRegistered       SubmitStage = "REGISTERED"
	SubmitSourceUploadDone SubmitStage = "SOURCE_UPLOAD_DONE"
	SubmitCheckSuccess     SubmitStage = "CHECK_SUCCESS"
	SubmitCheckError       SubmitStage = "CHECK_ERROR"
)

// SubmitStatus carries the current stage plus the cumulative log text
// shown to the bot's owner.
type SubmitStatus struct {
	Stage SubmitStage `json:"stage"`
	Log   string      `json:"log"`
}

// Append adds a line to the cumulative log and moves to the stage.
func (s *SubmitStatus) Append(stage SubmitStage, line string) {
	s.Stage = stage
	if line == "" {
		return
	}
	if s.Log != "" && s.Log[len(s.Log)-1] != '\n' {
		s.Log += "\n"
	}
	s.Log += fmt.Sprintf("[%s] %s", stage, line)
}

// SourceFile is a submitted artifact: a single source file or an archive.
type SourceFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// Bot is one user's competing program for one game.
//
// Source is absent until the first upload; VersionNumber is bumped by
// the API tier on every upload-link issuance and strictly increases.
type Bot struct {
	ID            string
	UserID        string
	GameID        string
	Name          string
	SubmitStatus  SubmitStatus
	VersionNumber int64
	Source        *SourceFile
}
