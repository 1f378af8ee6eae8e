package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

type BulkStatus string

const (
	BulkStatusCreated   BulkStatus = "CREATED"
	BulkStatusRunning   BulkStatus = "RUNNING"
	BulkStatusCompleted BulkStatus = "COMPLETED"
	BulkStatusFailed    BulkStatus = "FAILED"
	BulkStatusCanceled  BulkStatus = "CANCELED"
)

func (s BulkStatus) Terminal() bool {
	switch s {
	case BulkStatusCompleted, BulkStatusFailed, BulkStatusCanceled:
		return true
	}
	return false
}

// BulkOperation mirrors Shopify's BulkOperation object. It is owned by the
// remote API; we only observe it via polling.
type BulkOperation struct {
	ID          string     `json:"id"`
	Status      BulkStatus `json:"status"`
	ErrorCode   string     `json:"errorCode"`
	ObjectCount string     `json:"objectCount"`
	URL         string     `json:"url"`
	CreatedAt   string     `json:"createdAt"`
	CompletedAt string     `json:"completedAt"`
}

func (op *BulkOperation) Objects() int64 {
	n, _ := strconv.ParseInt(op.ObjectCount, 10, 64)
	return n
}

// UserError is a validation error reported by a mutation, e.g. a malformed
// query or a bulk operation already running for the store.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
}

// ErrPollTimeout is returned when the attempt ceiling is reached before the
// operation goes terminal. Distinct from a remote-reported FAILED.
var ErrPollTimeout = errors.New("bulk operation polling timed out")

const (
	defaultPollInterval = 3 * time.Second
	defaultMaxPolls     = 200
)

type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
}

const bulkRunMutation = `
mutation bulkRun($query: String!) {
  bulkOperationRunQuery(query: $query) {
    bulkOperation { id status createdAt }
    userErrors { field message code }
  }
}`

const currentBulkQuery = `
{
  currentBulkOperation {
    id
    status
    errorCode
    objectCount
    url
    createdAt
    completedAt
  }
}`

type bulkRunData struct {
	BulkOperationRunQuery struct {
		BulkOperation *BulkOperation `json:"bulkOperation"`
		UserErrors    []UserError    `json:"userErrors"`
	} `json:"bulkOperationRunQuery"`
}

type currentBulkData struct {
	CurrentBulkOperation *BulkOperation `json:"currentBulkOperation"`
}

// StartBulkQuery asks Shopify to execute resourceQuery asynchronously.
// Validation failures come back as user errors, not as a Go error.
func (c *Client) StartBulkQuery(ctx context.Context, shop, accessToken, resourceQuery string) (*BulkOperation, []UserError, error) {
	resp, err := Post[bulkRunData](ctx, c, shop, accessToken, bulkRunMutation, map[string]any{"query": resourceQuery})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, nil, fmt.Errorf("bulk submission graphql error: %s", resp.Errors[0].Message)
	}
	run := resp.Data.BulkOperationRunQuery
	if len(run.UserErrors) > 0 {
		return nil, run.UserErrors, nil
	}
	if run.BulkOperation == nil {
		return nil, nil, fmt.Errorf("bulk submission returned neither operation nor user errors")
	}
	return run.BulkOperation, nil, nil
}

// PollBulkOperation blocks until the store's current bulk operation reaches a
// terminal status, checking every opt.Interval up to opt.MaxAttempts times.
// The wait is cancellable: ctx is honored between polls.
func (c *Client) PollBulkOperation(ctx context.Context, shop, accessToken string, opt PollOptions) (*BulkOperation, error) {
	if opt.Interval == 0 {
		opt.Interval = defaultPollInterval
	}
	if opt.MaxAttempts == 0 {
		opt.MaxAttempts = defaultMaxPolls
	}

	for attempt := 1; attempt <= opt.MaxAttempts; attempt++ {
		resp, err := Post[currentBulkData](ctx, c, shop, accessToken, currentBulkQuery, nil)
		if err != nil {
			return nil, fmt.Errorf("poll bulk operation: %w", err)
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("poll bulk operation graphql error: %s", resp.Errors[0].Message)
		}

		op := resp.Data.CurrentBulkOperation
		if op == nil {
			return nil, fmt.Errorf("no bulk operation in progress for shop %s", shop)
		}
		if op.Status.Terminal() {
			if op.Status == BulkStatusCanceled {
				log.WithFields(log.Fields{"shop": shop, "operation": op.ID}).
					Warn("bulk operation was canceled")
			}
			return op, nil
		}

		if attempt < opt.MaxAttempts {
			if err := sleepCtx(ctx, opt.Interval); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrPollTimeout, opt.MaxAttempts)
}

// DownloadResult holds the parsed JSONL export. Raw is the file verbatim for
// archival; Records are the individual valid lines. Malformed lines are
// skipped and counted rather than failing the whole download.
type DownloadResult struct {
	Records []json.RawMessage
	Raw     []byte
	Skipped int
}

// DownloadBulkResult fetches the result file from the signed URL Shopify
// hands back on completion and parses it line by line.
func (c *Client) DownloadBulkResult(ctx context.Context, url string) (*DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("download bulk result: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		return nil, &StatusError{Code: res.StatusCode, Body: string(raw)}
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read bulk result: %w", err)
	}

	out := &DownloadResult{Raw: raw}
	for _, line := range bytes.Split(raw, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			out.Skipped++
			log.WithField("line_bytes", len(line)).Warn("skipping malformed jsonl line in bulk result")
			continue
		}
		out.Records = append(out.Records, json.RawMessage(append([]byte(nil), line...)))
	}
	if out.Skipped > 0 {
		log.WithFields(log.Fields{"records": len(out.Records), "skipped": out.Skipped}).
			Warn("bulk result contained malformed lines")
	}
	return out, nil
}
