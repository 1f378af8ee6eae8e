package pull

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	published []TaskMessage
	failOn    string // resource name that should fail to enqueue
}

func (q *fakeQueue) PublishJSON(ctx context.Context, v any) error {
	msg := v.(TaskMessage)
	if q.failOn != "" && msg.Resource == q.failOn {
		return errors.New("sns unavailable")
	}
	q.published = append(q.published, msg)
	return nil
}

func TestPullAllCreatesParentAndThreeSubJobs(t *testing.T) {
	t.Setenv("PULL_JOBS_TABLE", "jobs")
	jobs := &JobStore{DDB: newFakeDDB()}
	q := &fakeQueue{}
	coord := &Coordinator{Jobs: jobs, Queue: q, NewID: func() string { return "parent-1" }}

	parent, err := coord.PullAll(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "parent-1", parent.JobID)
	assert.Equal(t, JobStateStarted, parent.State)
	require.Len(t, parent.SubJobs, 3)
	require.Len(t, q.published, 3)

	for _, name := range []string{ResourceCustomers, ResourceProducts, ResourceOrders} {
		subID, ok := parent.SubJobs[name]
		require.True(t, ok, "missing sub-job for %s", name)

		sub, err := jobs.Get(context.Background(), subID)
		require.NoError(t, err)
		assert.Equal(t, JobStatePending, sub.State)
		assert.Equal(t, name, sub.Resource)
		assert.Equal(t, "parent-1", sub.ParentID)
	}
}

func TestSubJobIDsAreDeterministic(t *testing.T) {
	a := SubJobID("0c3298c6-2b2a-4249-a221-7ffbe9a32724", "customers")
	b := SubJobID("0c3298c6-2b2a-4249-a221-7ffbe9a32724", "customers")
	c := SubJobID("0c3298c6-2b2a-4249-a221-7ffbe9a32724", "orders")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestPullAllSiblingSurvivesEnqueueFailure(t *testing.T) {
	t.Setenv("PULL_JOBS_TABLE", "jobs")
	jobs := &JobStore{DDB: newFakeDDB()}
	q := &fakeQueue{failOn: ResourceProducts}
	coord := &Coordinator{Jobs: jobs, Queue: q, NewID: func() string { return "parent-2" }}

	parent, err := coord.PullAll(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, q.published, 2)

	failed, err := jobs.Get(context.Background(), parent.SubJobs[ResourceProducts])
	require.NoError(t, err)
	assert.Equal(t, JobStateFailure, failed.State)
	assert.Contains(t, failed.Error, "enqueue failed")

	ok, err := jobs.Get(context.Background(), parent.SubJobs[ResourceCustomers])
	require.NoError(t, err)
	assert.Equal(t, JobStatePending, ok.State)
}

func TestPullOne(t *testing.T) {
	t.Setenv("PULL_JOBS_TABLE", "jobs")
	jobs := &JobStore{DDB: newFakeDDB()}
	q := &fakeQueue{}
	coord := &Coordinator{Jobs: jobs, Queue: q}

	job, err := coord.PullOne(context.Background(), "demo.myshopify.com", ResourceOrders)
	require.NoError(t, err)
	assert.NotEmpty(t, job.JobID)
	assert.Equal(t, ResourceOrders, job.Resource)

	require.Len(t, q.published, 1)
	assert.Equal(t, job.JobID, q.published[0].JobID)
}

func TestJobStoreGetMissing(t *testing.T) {
	t.Setenv("PULL_JOBS_TABLE", "jobs")
	jobs := &JobStore{DDB: newFakeDDB()}

	_, err := jobs.Get(context.Background(), "does-not-exist")
	require.ErrorIs(t, err, ErrJobNotFound)
}
