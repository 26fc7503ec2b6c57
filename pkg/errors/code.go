package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Build errors (compiling submitted programs)
// 12000-12999: Process errors (external compilers and game servers)
// 13000-13999: Consistency errors (internal invariant violations)
// 14000-14999: Connectivity errors (queue and storage transport)
const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ValidationFailed    ErrorCode = 10004

	// ========== Build Errors (11000-11999) ==========

	BuildFailed         ErrorCode = 11000
	MarkerConfigMissing ErrorCode = 11001
	MarkerConfigInvalid ErrorCode = 11002
	SourceMissing       ErrorCode = 11003
	SourceUnsupported   ErrorCode = 11004
	ArtifactMissing     ErrorCode = 11005

	// ========== Process Errors (12000-12999) ==========

	ProcessFailed     ErrorCode = 12000
	ProcessTimeout    ErrorCode = 12001
	OutputFileMissing ErrorCode = 12002
	CommandInvalid    ErrorCode = 12003

	// ========== Consistency Errors (13000-13999) ==========

	ConsistencyViolation ErrorCode = 13000
	DuplicateContestBots ErrorCode = 13001
	ScoreDecodeFailed    ErrorCode = 13002
	MapNotFound          ErrorCode = 13003

	// ========== Connectivity Errors (14000-14999) ==========

	QueueUnavailable   ErrorCode = 14000
	StorageUnavailable ErrorCode = 14001
)

// Kind partitions error codes into the categories the worker loops
// switch on: everything except connectivity is recorded on the owning
// entity and the loop continues; connectivity terminates the worker.
type Kind int

const (
	KindInternal Kind = iota
	KindBuild
	KindProcess
	KindConsistency
	KindConnectivity
)

// Kind returns the category of the error code.
func (c ErrorCode) Kind() Kind {
	switch {
	case c >= 11000 && c < 12000:
		return KindBuild
	case c >= 12000 && c < 13000:
		return KindProcess
	case c >= 13000 && c < 14000:
		return KindConsistency
	case c >= 14000 && c < 15000:
		return KindConnectivity
	default:
		return KindInternal
	}
}

// Fatal reports whether an error of this code may terminate a worker
// loop. Only connectivity errors qualify; the system cannot make
// progress without the queue or storage.
func (c ErrorCode) Fatal() bool {
	return c.Kind() == KindConnectivity
}

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ValidationFailed:    "Validation failed",

	BuildFailed:         "Build command failed",
	MarkerConfigMissing: "Build marker config not found",
	MarkerConfigInvalid: "Build marker config is malformed",
	SourceMissing:       "No source has been uploaded",
	SourceUnsupported:   "Unsupported source file type",
	ArtifactMissing:     "Build did not produce the expected binary",

	ProcessFailed:     "External process exited with an error",
	ProcessTimeout:    "External process exceeded its time limit",
	OutputFileMissing: "External process did not produce an expected output file",
	CommandInvalid:    "Command template is invalid",

	ConsistencyViolation: "Internal consistency violation",
	DuplicateContestBots: "Contest registration contains duplicate bots",
	ScoreDecodeFailed:    "Match score file could not be decoded",
	MapNotFound:          "Requested map is not defined for this game",

	QueueUnavailable:   "Work queue is unavailable",
	StorageUnavailable: "Entity storage is unavailable",
}

// HTTPStatus maps the error code to an HTTP status for the worker
// status endpoints.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return 200
	case InvalidParams, ValidationFailed:
		return 400
	case NotFound:
		return 404
	case QueueUnavailable, StorageUnavailable:
		return 503
	default:
		return 500
	}
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}
