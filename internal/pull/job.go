package pull

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"microsegment/internal/db"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type JobState string

const (
	JobStatePending JobState = "PENDING"
	JobStateStarted JobState = "STARTED"
	JobStateSuccess JobState = "SUCCESS"
	JobStateFailure JobState = "FAILURE"
)

// Progress phases reported while a pull task runs.
const (
	PhaseSubmitted   = "submitted"
	PhasePolling     = "polling"
	PhaseDownloading = "downloading"
	PhaseDone        = "done"
)

// PullJob is one request to pull a resource collection for a shop. Parent
// "pull all" jobs carry SubJobs instead of a Resource.
type PullJob struct {
	PK string `dynamodbav:"PK"` // JOB#<job_id>
	SK string `dynamodbav:"SK"` // META

	JobID    string            `dynamodbav:"JobID" json:"job_id"`
	Shop     string            `dynamodbav:"Shop" json:"shop"`
	Resource string            `dynamodbav:"Resource,omitempty" json:"resource,omitempty"`
	ParentID string            `dynamodbav:"ParentID,omitempty" json:"parent_id,omitempty"`
	SubJobs  map[string]string `dynamodbav:"SubJobs,omitempty" json:"subtasks,omitempty"`

	State JobState `dynamodbav:"State" json:"state"`
	Phase string   `dynamodbav:"Phase,omitempty" json:"phase,omitempty"`
	Count int      `dynamodbav:"Count" json:"count"`
	Error string   `dynamodbav:"Error,omitempty" json:"error,omitempty"`

	CreatedAt string `dynamodbav:"CreatedAt" json:"created_at"`
	UpdatedAt string `dynamodbav:"UpdatedAt" json:"updated_at"`
}

var ErrJobNotFound = errors.New("pull job not found")

// SubJobID derives the deterministic ID for a resource pull under a parent
// job: UUIDv5 of the parent UUID with the resource name as material.
func SubJobID(parentID, resource string) string {
	ns, err := uuid.Parse(parentID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(parentID))
	}
	return uuid.NewSHA1(ns, []byte(resource)).String()
}

type JobsAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// JobStore persists PullJob records in DynamoDB. Writes are whole-item
// overwrites keyed uniquely per job, so concurrent pulls cannot interleave
// partial updates.
type JobStore struct {
	DDB JobsAPI
}

func (s *JobStore) table() (string, error) {
	t := strings.TrimSpace(db.PullJobsTableName())
	if t == "" {
		return "", fmt.Errorf("PULL_JOBS_TABLE not set")
	}
	return t, nil
}

func jobKey(jobID string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: "JOB#" + jobID},
		"SK": &ddbtypes.AttributeValueMemberS{Value: "META"},
	}
}

func (s *JobStore) Put(ctx context.Context, job *PullJob) error {
	tbl, err := s.table()
	if err != nil {
		return err
	}
	job.PK = "JOB#" + job.JobID
	job.SK = "META"
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return err
	}
	_, err = s.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tbl),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("job PutItem: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, jobID string) (*PullJob, error) {
	tbl, err := s.table()
	if err != nil {
		return nil, err
	}
	out, err := s.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(tbl),
		Key:       jobKey(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("job GetItem: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	var job PullJob
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SetPhase moves a job to the given state/phase and persists it.
func (s *JobStore) SetPhase(ctx context.Context, job *PullJob, state JobState, phase string) error {
	job.State = state
	job.Phase = phase
	return s.Put(ctx, job)
}
