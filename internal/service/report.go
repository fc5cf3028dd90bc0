package service

import (
	"fmt"
	"strings"
)

// State is the lifecycle of a queue processor.
type State string

const (
	StateIdle                  State = "idle"
	StateDraining              State = "draining"
	StateCompleted             State = "completed"
	StateCompletedWithFailures State = "completed_with_failures"
	StateEmpty                 State = "empty"
	StateFailed                State = "failed"
)

const (
	textQueueEmpty  = "Queue is empty"
	textQueueAbsent = "Queue is empty (queue file does not exist)"
)

// BatchResult summarises one drain.
type BatchResult struct {
	Processed  int      `json:"processed"`
	Failed     int      `json:"failed"`
	FailedURLs []string `json:"failed_urls"`
	Remaining  int      `json:"remaining"`
}

// Report is the response of a drain. Failures are flagged with IsError.
type Report struct {
	State   State        `json:"state"`
	Text    string       `json:"text"`
	IsError bool         `json:"is_error"`
	Result  *BatchResult `json:"result,omitempty"`
}

func emptyReport(text string) *Report {
	return &Report{State: StateEmpty, Text: text}
}

func errorReport(err error, result *BatchResult) *Report {
	return &Report{
		State:   StateFailed,
		Text:    fmt.Sprintf("Failed to process queue: %v", err),
		IsError: true,
		Result:  result,
	}
}

func completedReport(result *BatchResult) *Report {
	state := StateCompleted
	if result.Failed > 0 || result.Remaining > 0 {
		state = StateCompletedWithFailures
	}
	return &Report{State: state, Text: result.Summary(), Result: result}
}

// Summary renders the result as the human-readable drain report.
func (r *BatchResult) Summary() string {
	var b strings.Builder
	b.WriteString("Queue processing complete.\n")
	fmt.Fprintf(&b, "Processed: %d URLs\n", r.Processed)
	fmt.Fprintf(&b, "Failed: %d URLs", r.Failed)
	if r.Remaining > 0 {
		fmt.Fprintf(&b, "\nRemaining: %d URLs", r.Remaining)
	}
	if len(r.FailedURLs) > 0 {
		b.WriteString("\n\nFailed URLs:\n")
		b.WriteString(strings.Join(r.FailedURLs, "\n"))
	}
	return b.String()
}
