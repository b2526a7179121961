// Package classify submits finished recordings to the external genre
// classification endpoint. The response is opaque to this program.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/soundlabml/genremic/internal/audio"
)

// DefaultSampleRate is reported when the capture context rate is unknown.
const DefaultSampleRate = 44100

// maxResponseLog caps how much opaque response body ends up in logs.
const maxResponseLog = 2048

// SubmissionError reports a failed submission.
type SubmissionError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("submission to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("submission to %s failed: status %d", e.Endpoint, e.Status)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Client posts recordings to the classification endpoint.
type Client struct {
	endpoint string
	httpc    *http.Client
}

// New creates a client for the given endpoint URL.
func New(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: timeout},
	}
}

// Dispatch submits the blob on a separate goroutine and returns a
// result channel. Callers that only want fire-and-forget semantics
// drop the channel; the outcome is logged either way.
func (c *Client) Dispatch(blob *audio.Blob, sampleRate int) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- c.Submit(context.Background(), blob, sampleRate)
	}()
	return result
}

// Submit posts the blob as a multipart request with fields "audio" and
// "sample_rate". The response body is logged as opaque text, never
// parsed. No retries.
func (c *Client) Submit(ctx context.Context, blob *audio.Blob, sampleRate int) error {
	if blob == nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("no recording to submit")}
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="audio"; filename="recording.webm"`)
	header.Set("Content-Type", blob.MIME)
	part, err := mw.CreatePart(header)
	if err != nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to create form part: %w", err)}
	}
	if _, err := part.Write(blob.Data); err != nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to write audio field: %w", err)}
	}
	if err := mw.WriteField("sample_rate", strconv.Itoa(sampleRate)); err != nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to write sample_rate field: %w", err)}
	}
	if err := mw.Close(); err != nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to finalize form: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return &SubmissionError{Endpoint: c.endpoint, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	slog.Info("Submitting recording for classification",
		"endpoint", c.endpoint, "bytes", len(blob.Data), "sample_rate", sampleRate)

	resp, err := c.httpc.Do(req)
	if err != nil {
		subErr := &SubmissionError{Endpoint: c.endpoint, Err: err}
		slog.Error("Classification submission failed", "error", subErr)
		return subErr
	}
	defer resp.Body.Close()

	text, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseLog))
	if resp.StatusCode >= 300 {
		subErr := &SubmissionError{Endpoint: c.endpoint, Status: resp.StatusCode}
		slog.Error("Classification endpoint rejected submission",
			"status", resp.StatusCode, "body", string(text))
		return subErr
	}

	slog.Info("Classification response received", "status", resp.StatusCode, "body", string(text))
	return nil
}
