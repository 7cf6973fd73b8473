package parsers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/structdoc/structdoc/pkg/logger"
)

// RemoteOptions configures the remote parse service client.
type RemoteOptions struct {
	// BaseURL is the root of the parse service, e.g. "https://parse.internal".
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// PollInterval is the initial delay between job status checks.
	PollInterval time.Duration
	// MaxPollTime bounds the whole polling phase. Zero means the parser
	// configuration's timeout.
	MaxPollTime time.Duration
	// Timeout bounds a single HTTP request to the service. Zero means the
	// parser configuration's timeout.
	Timeout time.Duration
	// RetryAttempts is the number of upload attempts.
	RetryAttempts uint
}

// remoteUploadResponse is the body returned by the job submission endpoint.
type remoteUploadResponse struct {
	JobID string `json:"job_id"`
}

// remoteJobStatus is the body returned by the job status endpoint. Elements
// arrive in their serialized map form once the job is done.
type remoteJobStatus struct {
	JobID    string                   `json:"job_id"`
	Status   string                   `json:"status"`
	Error    string                   `json:"error,omitempty"`
	Elements []map[string]interface{} `json:"elements,omitempty"`
	Metadata map[string]interface{}   `json:"metadata,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// Remote job states.
const (
	remoteStatusDone   = "done"
	remoteStatusFailed = "failed"
)

// RemoteParser delegates parsing to an HTTP parse service: it uploads the
// file, polls the job until completion and restores the returned elements.
// It is not registered by NewDefaultFactory because it needs an endpoint;
// callers register it with their RemoteOptions.
type RemoteParser struct {
	BaseDocumentParser
	opts    RemoteOptions
	client  *resty.Client
	decoder *StandardElementParser
}

// NewRemoteParser creates a parse service client. A missing BaseURL is
// reported at parse time, keeping the constructor usable as a factory
// registration target.
func NewRemoteParser(opts RemoteOptions, config *ParserConfiguration, log logger.Logger) *RemoteParser {
	base := NewBaseDocumentParser(StrategyRemote, nil, config, log)
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.MaxPollTime <= 0 {
		opts.MaxPollTime = base.Config().Timeout()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = base.Config().Timeout()
	}
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 3
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", "structdoc/1.0")
	if opts.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+opts.APIKey)
	}

	return &RemoteParser{
		BaseDocumentParser: base,
		opts:               opts,
		client:             client,
		decoder:            NewStandardElementParser(base.Logger()),
	}
}

// Parse submits the file to the parse service and restores the elements it
// returns. Service failures are recorded on the result.
func (p *RemoteParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config().Timeout())
	defer cancel()

	start := time.Now()
	result := NewParseResult(StrategyRemote)

	if p.opts.BaseURL == "" {
		result.AddError("remote parse service URL is not configured")
		return p.finishResult(ctx, result, start), nil
	}
	if valid, reason := p.ValidateFile(filePath); !valid {
		result.AddError(reason)
		return p.finishResult(ctx, result, start), nil
	}
	if err := p.Preprocess(ctx, filePath); err != nil {
		result.AddError(fmt.Sprintf("preprocessing failed: %v", err))
		return p.finishResult(ctx, result, start), nil
	}

	doc := NewDocument(filePath)
	if p.Config().ExtractMetadata {
		doc.Metadata = p.ExtractMetadata(filePath)
	}
	result.Document = doc

	jobID, err := p.upload(ctx, filePath)
	if err != nil {
		result.AddError(fmt.Sprintf("upload failed: %v", err))
		return p.finishResult(ctx, result, start), nil
	}
	p.Logger().Debug("remote parse job submitted", map[string]interface{}{
		"job_id": jobID,
		"file":   filePath,
	})

	status, err := p.await(ctx, jobID)
	if err != nil {
		result.AddError(fmt.Sprintf("remote parse failed: %v", err))
		return p.finishResult(ctx, result, start), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		result.AddError(fmt.Sprintf("parsing interrupted: %v", ctxErr))
		return p.finishResult(ctx, result, start), ctxErr
	}

	p.applyJobStatus(result, status)
	fillContentStats(result)
	return p.finishResult(ctx, result, start), nil
}

// upload submits the file as a multipart job, retrying transient failures.
func (p *RemoteParser) upload(ctx context.Context, filePath string) (string, error) {
	var uploadResp remoteUploadResponse
	err := retry.Do(
		func() error {
			resp, reqErr := p.client.R().
				SetContext(ctx).
				SetFile("file", filePath).
				SetResult(&uploadResp).
				Post("/v1/jobs")
			if reqErr != nil {
				return reqErr
			}
			if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
				return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
			}
			return nil
		},
		retry.Attempts(p.opts.RetryAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return "", err
	}
	if uploadResp.JobID == "" {
		return "", fmt.Errorf("service returned no job id")
	}
	return uploadResp.JobID, nil
}

// await polls the job until it completes, backing off exponentially.
func (p *RemoteParser) await(ctx context.Context, jobID string) (*remoteJobStatus, error) {
	var done *remoteJobStatus

	poll := backoff.NewExponentialBackOff()
	poll.InitialInterval = p.opts.PollInterval
	poll.MaxElapsedTime = p.opts.MaxPollTime

	operation := func() error {
		status, err := p.fetchJob(ctx, jobID)
		if err != nil {
			return err
		}
		switch status.Status {
		case remoteStatusDone:
			done = status
			return nil
		case remoteStatusFailed:
			msg := status.Error
			if msg == "" {
				msg = "no error reported"
			}
			return backoff.Permanent(fmt.Errorf("job %s failed: %s", jobID, msg))
		default:
			return fmt.Errorf("job %s is %s", jobID, status.Status)
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(poll, ctx)); err != nil {
		return nil, err
	}
	return done, nil
}

// fetchJob reads the current job status.
func (p *RemoteParser) fetchJob(ctx context.Context, jobID string) (*remoteJobStatus, error) {
	var status remoteJobStatus
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/v1/jobs/" + jobID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return &status, nil
}

// applyJobStatus restores returned elements onto the result. Elements that
// fail to decode are logged and skipped.
func (p *RemoteParser) applyJobStatus(result *ParseResult, status *remoteJobStatus) {
	for _, warning := range status.Warnings {
		result.AddWarning(warning)
	}
	if len(status.Metadata) > 0 && result.Document != nil && result.Document.Metadata != nil {
		for k, v := range status.Metadata {
			result.Document.Metadata.Custom[k] = v
		}
	}
	for i, raw := range status.Elements {
		el, err := p.decoder.ParseElement(raw)
		if err != nil {
			p.Logger().Warn("skipping undecodable remote element", map[string]interface{}{
				"job_id": status.JobID,
				"index":  i,
				"error":  err.Error(),
			})
			result.AddWarning(fmt.Sprintf("element %d could not be restored: %v", i, err))
			continue
		}
		if meta := el.GetMetadata(); meta.SourceParser == "" {
			stampProvenance(el, StrategyRemote, "remote_service")
		}
		result.AddElement(el)
	}
	if len(status.Elements) == 0 {
		result.AddWarning("remote service returned no elements")
	}
}
