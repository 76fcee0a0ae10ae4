package jobsubmit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/xlua"
)

// maxRequestSize bounds a single request line.
const maxRequestSize = 1 << 20

// Decider makes submit decisions. *Plugin is the production implementation.
type Decider interface {
	Submit(ctx context.Context, desc *job.Descriptor, partitions []*job.Partition, submitUID uint32) (Decision, error)
}

// Request is one line of the NDJSON request stream.
type Request struct {
	ID         string           `json:"id,omitempty"`
	Job        *job.Descriptor  `json:"job"`
	Partitions []*job.Partition `json:"partitions,omitempty"`
	SubmitUID  uint32           `json:"submit_uid"`
}

// Response is one line of the NDJSON response stream.
type Response struct {
	ID string `json:"id,omitempty"`
	Decision
	Error string `json:"error,omitempty"`
}

// ServeStream reads submit requests from r, one JSON object per line, and
// writes one response line per request to w. Requests without partitions use
// defaults. Malformed lines get an error response and do not stop the stream.
// It returns when r is exhausted or ctx is canceled.
func ServeStream(
	ctx context.Context,
	r io.Reader,
	w io.Writer,
	d Decider,
	defaults []*job.Partition,
	logger *slog.Logger,
) error {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	enc := json.NewEncoder(w)

	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		resp := handleRequest(ctx, raw, d, defaults)
		if resp.Error != "" {
			logger.Warn("Request failed", "line", line, "id", resp.ID, "error", resp.Error)
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read requests: %w", err)
	}
	return nil
}

func handleRequest(ctx context.Context, raw []byte, d Decider, defaults []*job.Partition) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Response{Decision: Decision{Code: xlua.Error}, Error: fmt.Sprintf("invalid request: %v", err)}
	}
	if req.Job == nil {
		return Response{ID: req.ID, Decision: Decision{Code: xlua.Error}, Error: "invalid request: missing job"}
	}

	parts := req.Partitions
	if len(parts) == 0 {
		parts = defaults
	}

	decision, err := d.Submit(ctx, req.Job, parts, req.SubmitUID)
	resp := Response{ID: req.ID, Decision: decision}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
