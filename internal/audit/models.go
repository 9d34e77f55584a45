package audit

var schemaVersion = "0.1.0"
var logContext = "audit"

type Disposition string

const (
	DispositionNeutral Disposition = "neutral"
	DispositionGood    Disposition = "good"
	DispositionBad     Disposition = "bad"
)

type FileArchivedEntity string

const (
	EntityCodeArtifact FileArchivedEntity = "code_artifact"
)

type ArchivedFile string

const (
	ArchivedFileGeneratedTest ArchivedFile = "generated_test"
)

type EventType string

const (
	EvtJobCreated        EventType = "job_created"
	EvtSummariesProposed EventType = "summaries_proposed"
	EvtCodeGenerated     EventType = "code_generated"
	EvtFileArchived      EventType = "file_archived"
	EvtPullRequestOpened EventType = "pull_request_opened"
	EvtPullRequestFailed EventType = "pull_request_failed"
)

type Message struct {
	UserID        *string     `json:"user_id"`
	JobID         *string     `json:"job_id"`
	LogContext    string      `json:"log_context" validate:"required"`
	SchemaVersion string      `json:"version"     validate:"required"`
	Repository    string      `json:"repository"`
	Disposition   Disposition `json:"disposition" validate:"required"`
	Type          EventType   `json:"event_type"  validate:"required"`

	// Unix timestamp at millisecond resolution
	Timestamp int64 `json:"timestamp" validate:"required"`
}

type FileArchivedEvent struct {
	BucketName   string             `json:"bucket_name"   validate:"required"`
	ObjectName   string             `json:"object_name"   validate:"required"`
	FileArchived ArchivedFile       `json:"file_archived" validate:"required"`
	Entity       FileArchivedEntity `json:"entity"        validate:"required"`
	EntityID     string             `json:"entity_id"     validate:"required"` // the ID for the entity called out in the context
}

type FileArchived struct {
	Event FileArchivedEvent `json:"event" validate:"required"`
	Message
}

type JobCreatedEvent struct {
	Files int `json:"files"`
}

type JobCreated struct {
	Event JobCreatedEvent `json:"event" validate:"required"`
	Message
}

type SummariesProposedEvent struct {
	Origin    string `json:"origin"    validate:"required"`
	Summaries int    `json:"summaries"`
}

type SummariesProposed struct {
	Event SummariesProposedEvent `json:"event" validate:"required"`
	Message
}

type CodeGeneratedEvent struct {
	SummaryID  string `json:"summary_id"  validate:"required"`
	ArtifactID string `json:"artifact_id" validate:"required"`
	Filename   string `json:"filename"    validate:"required"`
	Framework  string `json:"framework"   validate:"required"`
	Origin     string `json:"origin"      validate:"required"`
}

type CodeGenerated struct {
	Event CodeGeneratedEvent `json:"event" validate:"required"`
	Message
}

type PullRequestOpenedEvent struct {
	URL            string   `json:"url"             validate:"required"`
	Branch         string   `json:"branch"          validate:"required"`
	CommittedFiles []string `json:"committed_files"`
	FailedFiles    []string `json:"failed_files"`
}

type PullRequestOpened struct {
	Event PullRequestOpenedEvent `json:"event" validate:"required"`
	Message
}

type PullRequestFailedEvent struct {
	Step   string `json:"step"   validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

type PullRequestFailed struct {
	Event PullRequestFailedEvent `json:"event" validate:"required"`
	Message
}
