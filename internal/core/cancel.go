package core

import "context"

// CancelResult is the outcome of CancelSession (§4.10).
type CancelResult struct {
	Cancelled    int
	CleanedBlobs int
	Errors       []string
}

// CancelSession implements §4.10: every job of sessionID still in
// pending/extracting/uploading/transcribing is marked cancelled, its staged
// blob and remote job are best-effort deleted here (the orchestrator's own
// in-flight cleanup contract tolerates the resulting double-delete), and
// in-flight pipelines observe the status change at their next cancellation
// check point.
func (o *Orchestrator) CancelSession(ctx context.Context, sessionID string) CancelResult {
	result := CancelResult{}

	sess, ok := o.store.GetSession(sessionID)
	if !ok {
		result.Errors = append(result.Errors, "session not found: "+sessionID)
		return result
	}

	for _, job := range sess.OrderedJobs() {
		switch job.Status {
		case StatusPending, StatusExtracting, StatusUploading, StatusTranscribing:
		default:
			continue
		}

		o.store.UpdateJobStatus(sessionID, job.JobID, StatusCancelled, JobFields{})
		result.Cancelled++

		if job.RemoteBlobName != "" {
			if o.remote.DeleteBlob(ctx, job.RemoteBlobName) {
				result.CleanedBlobs++
			} else {
				result.Errors = append(result.Errors, "failed to delete blob "+job.RemoteBlobName)
			}
		}
		if job.RemoteJobID != "" {
			if err := o.remote.DeleteTranscription(ctx, job.RemoteJobID); err != nil {
				// A "still running" rejection is not an error (§4.10); the
				// remote client already absorbs that case internally, so any
				// error reaching here is a genuine failure.
				result.Errors = append(result.Errors, "failed to delete remote job "+job.RemoteJobID+": "+err.Error())
			}
		}
	}

	return result
}
