package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/testsmith/testsmith/internal/logger"
)

type Context struct {
	UserID     *string
	JobID      *string
	Repository string
}

func (c Context) message(evt EventType, disposition Disposition) Message {
	return Message{
		UserID:        c.UserID,
		JobID:         c.JobID,
		LogContext:    logContext,
		SchemaVersion: schemaVersion,
		Repository:    c.Repository,
		Disposition:   disposition,
		Type:          evt,
		Timestamp:     time.Now().UTC().UnixMilli(),
	}
}

func emit(evt EventType, event any) {
	evtStr, err := json.Marshal(event)
	if err != nil {
		logger.Logger.Error("could not serialize audit event", "eventType", evt, "error", err)
		return
	}

	fmt.Println(string(evtStr))
}

func LogFileArchived(
	c Context,
	bucketName string,
	objectName string,
	fileArchived ArchivedFile,
	fileArchivedEntity FileArchivedEntity,
	entityID string,
) {
	event := FileArchived{Message: c.message(EvtFileArchived, DispositionNeutral)}
	event.Event.BucketName = bucketName
	event.Event.ObjectName = objectName
	event.Event.FileArchived = fileArchived
	event.Event.Entity = fileArchivedEntity
	event.Event.EntityID = entityID

	emit(EvtFileArchived, event)
}

func LogJobCreated(c Context, files int) {
	event := JobCreated{Message: c.message(EvtJobCreated, DispositionNeutral)}
	event.Event.Files = files

	emit(EvtJobCreated, event)
}

func LogSummariesProposed(c Context, origin string, summaries int) {
	disposition := DispositionGood
	if origin != "model" {
		disposition = DispositionNeutral
	}

	event := SummariesProposed{Message: c.message(EvtSummariesProposed, disposition)}
	event.Event.Origin = origin
	event.Event.Summaries = summaries

	emit(EvtSummariesProposed, event)
}

func LogCodeGenerated(
	c Context,
	summaryID string,
	artifactID string,
	filename string,
	framework string,
	origin string,
) {
	disposition := DispositionGood
	if origin != "model" {
		disposition = DispositionNeutral
	}

	event := CodeGenerated{Message: c.message(EvtCodeGenerated, disposition)}
	event.Event.SummaryID = summaryID
	event.Event.ArtifactID = artifactID
	event.Event.Filename = filename
	event.Event.Framework = framework
	event.Event.Origin = origin

	emit(EvtCodeGenerated, event)
}

func LogPullRequestOpened(c Context, url string, branch string, committed []string, failed []string) {
	event := PullRequestOpened{Message: c.message(EvtPullRequestOpened, DispositionGood)}
	event.Event.URL = url
	event.Event.Branch = branch
	event.Event.CommittedFiles = committed
	event.Event.FailedFiles = failed

	emit(EvtPullRequestOpened, event)
}

func LogPullRequestFailed(c Context, step string, reason string) {
	event := PullRequestFailed{Message: c.message(EvtPullRequestFailed, DispositionBad)}
	event.Event.Step = step
	event.Event.Reason = reason

	emit(EvtPullRequestFailed, event)
}
