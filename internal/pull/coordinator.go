package pull

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TaskMessage is the queue payload for one resource pull.
type TaskMessage struct {
	JobID    string `json:"job_id"`
	Shop     string `json:"shop"`
	Resource string `json:"resource"`
}

type TaskQueue interface {
	PublishJSON(ctx context.Context, v any) error
}

// Coordinator fans a "pull all" request out into independent per-resource
// jobs. It returns immediately with the identifiers; completion is observed
// by polling each sub-job, never by the coordinator joining on them.
type Coordinator struct {
	Jobs  *JobStore
	Queue TaskQueue

	// NewID is swappable in tests; nil means a random v4 UUID.
	NewID func() string
}

func (c *Coordinator) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}

// PullAll creates the parent job plus one PENDING sub-job per resource and
// enqueues each sub-job. Sub-job IDs are derived from the parent ID so a
// caller can address them without another round trip.
func (c *Coordinator) PullAll(ctx context.Context, shop string) (*PullJob, error) {
	parentID := c.newID()
	now := time.Now().UTC().Format(time.RFC3339)

	parent := &PullJob{
		JobID:     parentID,
		Shop:      shop,
		State:     JobStateStarted,
		SubJobs:   map[string]string{},
		CreatedAt: now,
	}
	for _, res := range Resources() {
		parent.SubJobs[res.Name] = SubJobID(parentID, res.Name)
	}
	if err := c.Jobs.Put(ctx, parent); err != nil {
		return nil, err
	}

	for _, res := range Resources() {
		sub := &PullJob{
			JobID:     parent.SubJobs[res.Name],
			Shop:      shop,
			Resource:  res.Name,
			ParentID:  parentID,
			State:     JobStatePending,
			CreatedAt: now,
		}
		if err := c.Jobs.Put(ctx, sub); err != nil {
			return nil, err
		}
		if err := c.Queue.PublishJSON(ctx, TaskMessage{JobID: sub.JobID, Shop: shop, Resource: res.Name}); err != nil {
			// Siblings stay independent: a failed enqueue fails only its
			// own sub-job.
			log.WithFields(log.Fields{"job_id": sub.JobID, "resource": res.Name}).
				Errorf("enqueue failed: %v", err)
			sub.Error = "enqueue failed: " + err.Error()
			if err := c.Jobs.SetPhase(ctx, sub, JobStateFailure, ""); err != nil {
				return nil, err
			}
		}
	}
	return parent, nil
}

// PullOne schedules a single-resource pull.
func (c *Coordinator) PullOne(ctx context.Context, shop, resource string) (*PullJob, error) {
	job := &PullJob{
		JobID:     c.newID(),
		Shop:      shop,
		Resource:  resource,
		State:     JobStatePending,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.Jobs.Put(ctx, job); err != nil {
		return nil, err
	}
	if err := c.Queue.PublishJSON(ctx, TaskMessage{JobID: job.JobID, Shop: shop, Resource: resource}); err != nil {
		job.Error = "enqueue failed: " + err.Error()
		if serr := c.Jobs.SetPhase(ctx, job, JobStateFailure, ""); serr != nil {
			return nil, serr
		}
		return nil, err
	}
	return job, nil
}
