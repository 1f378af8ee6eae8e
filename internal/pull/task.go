package pull

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"microsegment/internal/shopify"

	log "github.com/sirupsen/logrus"
)

// Result is what a pull task hands back. Business failures — submission user
// errors, provider FAILED/CANCELED, poll timeout — come back inside it; they
// never escape as a Go error. The error return from Run is reserved for
// infrastructure failures (job state or cache writes) that should make the
// queue redeliver the task.
type Result struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Runner executes one resource pull: start the bulk operation, poll to a
// terminal status, download, persist.
type Runner struct {
	Shopify *shopify.Client
	Jobs    *JobStore
	Cache   *ResultCache
	Archive *Archive // optional

	Poll shopify.PollOptions
	TTL  time.Duration
}

func (r *Runner) ttl() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return time.Hour
}

// Run drives the job to SUCCESS or FAILURE, reporting progress phases along
// the way so a status endpoint can show interim state.
func (r *Runner) Run(ctx context.Context, job *PullJob, accessToken string) (Result, error) {
	res, ok := ResourceByName(job.Resource)
	if !ok {
		return r.fail(ctx, job, fmt.Sprintf("unknown resource %q", job.Resource))
	}

	logger := log.WithFields(log.Fields{
		"job_id":   job.JobID,
		"shop":     job.Shop,
		"resource": res.Name,
	})

	if err := r.Jobs.SetPhase(ctx, job, JobStateStarted, PhaseSubmitted); err != nil {
		return Result{}, err
	}

	op, userErrs, err := r.Shopify.StartBulkQuery(ctx, job.Shop, accessToken, res.Query)
	if err != nil {
		logger.Errorf("bulk submission failed: %v", err)
		return r.fail(ctx, job, fmt.Sprintf("bulk submission failed: %v", err))
	}
	if len(userErrs) > 0 {
		logger.WithField("user_errors", userErrs).Warn("bulk submission rejected")
		return r.fail(ctx, job, fmt.Sprintf("bulk submission rejected: %s", userErrs[0].Message))
	}
	logger.WithField("operation", op.ID).Info("bulk operation submitted")

	if err := r.Jobs.SetPhase(ctx, job, JobStateStarted, PhasePolling); err != nil {
		return Result{}, err
	}

	op, err = r.Shopify.PollBulkOperation(ctx, job.Shop, accessToken, r.Poll)
	if err != nil {
		if errors.Is(err, shopify.ErrPollTimeout) {
			logger.Error("bulk operation timed out")
			return r.fail(ctx, job, "bulk operation timed out")
		}
		if ctx.Err() != nil {
			return Result{}, err
		}
		logger.Errorf("bulk polling failed: %v", err)
		return r.fail(ctx, job, fmt.Sprintf("bulk polling failed: %v", err))
	}

	switch op.Status {
	case shopify.BulkStatusFailed, shopify.BulkStatusCanceled:
		// Error codes from the provider are surfaced verbatim.
		msg := fmt.Sprintf("bulk operation %s", op.Status)
		if op.ErrorCode != "" {
			msg = fmt.Sprintf("bulk operation %s: %s", op.Status, op.ErrorCode)
		}
		logger.WithField("error_code", op.ErrorCode).Error("bulk operation did not complete")
		return r.fail(ctx, job, msg)
	}

	if err := r.Jobs.SetPhase(ctx, job, JobStateStarted, PhaseDownloading); err != nil {
		return Result{}, err
	}

	records := []json.RawMessage{}
	var raw []byte
	if op.URL != "" {
		dl, err := r.Shopify.DownloadBulkResult(ctx, op.URL)
		if err != nil {
			logger.Errorf("bulk download failed: %v", err)
			return r.fail(ctx, job, fmt.Sprintf("bulk download failed: %v", err))
		}
		if dl.Records != nil {
			records = dl.Records
		}
		raw = dl.Raw
	}
	// COMPLETED with no URL means an empty result set, which is valid.

	payload, err := json.Marshal(records)
	if err != nil {
		return Result{}, err
	}
	if err := r.Cache.Put(ctx, res.Name, job.Shop, job.JobID, payload, r.ttl()); err != nil {
		return Result{}, err
	}

	if r.Archive != nil && len(raw) > 0 {
		if key, err := r.Archive.Store(ctx, job.Shop, res.Name, job.JobID, raw); err != nil {
			// Archival is best-effort; the cached result is the contract.
			logger.Warnf("raw result archive failed: %v", err)
		} else {
			logger.WithField("s3_key", key).Info("raw result archived")
		}
	}

	job.Count = len(records)
	job.Error = ""
	if err := r.Jobs.SetPhase(ctx, job, JobStateSuccess, PhaseDone); err != nil {
		return Result{}, err
	}

	logger.WithField("count", len(records)).Info("pull completed")
	return Result{
		Success: true,
		Count:   len(records),
		Message: fmt.Sprintf("pulled %d %s", len(records), res.Name),
	}, nil
}

func (r *Runner) fail(ctx context.Context, job *PullJob, msg string) (Result, error) {
	job.Error = msg
	if err := r.Jobs.SetPhase(ctx, job, JobStateFailure, job.Phase); err != nil {
		return Result{}, err
	}
	return Result{Success: false, Error: msg}, nil
}
