package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JobStatus is the verification job state reported by the service.
// The wire format is an integer code; anything outside the known range
// decodes to StatusUnknown rather than failing the whole snapshot.
type JobStatus int

// Status codes as defined by the verification service.
const (
	StatusSubmitted     JobStatus = 0
	StatusCompiled      JobStatus = 1
	StatusCompileFailed JobStatus = 2
	StatusFail          JobStatus = 3
	StatusSuccess       JobStatus = 4
	StatusProcessing    JobStatus = 5
	StatusUnknown       JobStatus = -1
)

// StatusFromCode maps a wire status code to a JobStatus.
func StatusFromCode(code int) JobStatus {
	switch JobStatus(code) {
	case StatusSubmitted, StatusCompiled, StatusCompileFailed, StatusFail, StatusSuccess, StatusProcessing:
		return JobStatus(code)
	default:
		return StatusUnknown
	}
}

// ParseStatus maps a status name (as stored in history) back to a JobStatus.
func ParseStatus(s string) JobStatus {
	switch strings.ToLower(s) {
	case "submitted":
		return StatusSubmitted
	case "compiled":
		return StatusCompiled
	case "compilefailed":
		return StatusCompileFailed
	case "fail":
		return StatusFail
	case "success":
		return StatusSuccess
	case "processing":
		return StatusProcessing
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the status is final. Terminal statuses never
// transition again.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompileFailed, StatusFail, StatusSuccess:
		return true
	default:
		return false
	}
}

// Failed reports whether the status is a terminal failure.
func (s JobStatus) Failed() bool {
	return s == StatusCompileFailed || s == StatusFail
}

func (s JobStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusCompiled:
		return "Compiled"
	case StatusCompileFailed:
		return "CompileFailed"
	case StatusFail:
		return "Fail"
	case StatusSuccess:
		return "Success"
	case StatusProcessing:
		return "Processing"
	default:
		return "Unknown"
	}
}

// UnmarshalJSON decodes the integer wire code with an Unknown fallback.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("decoding status code: %w", err)
	}
	*s = StatusFromCode(code)
	return nil
}

// MarshalJSON encodes the integer wire code. Unknown has no wire
// representation and is encoded as -1.
func (s JobStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(int(s))
}

// VerificationRequest is the submission payload. File contents are
// base64-encoded and keyed by project-root-relative path.
type VerificationRequest struct {
	Name           string            `json:"name"`
	Version        string            `json:"version"`
	ContractFile   string            `json:"contract_file"`
	ProjectDirPath string            `json:"project_dir_path"`
	CairoVersion   string            `json:"cairo_version"`
	ScarbVersion   string            `json:"scarb_version"`
	License        string            `json:"license"`
	BuildTool      string            `json:"build_tool"`
	DojoVersion    *string           `json:"dojo_version"`
	Files          map[string]string `json:"files"`
}

// dispatch is the submission response body.
type dispatch struct {
	JobID string `json:"job_id"`
}

// Job is a full verification job snapshot as returned by the service.
type Job struct {
	JobID             string    `json:"job_id"`
	Status            JobStatus `json:"status"`
	StatusDescription string    `json:"status_description"`
	Message           string    `json:"message"`
	ErrorCategory     *string   `json:"error_category"`
	ClassHash         string    `json:"class_hash"`
	CreatedTimestamp  float64   `json:"created_timestamp"`
	UpdatedTimestamp  float64   `json:"updated_timestamp"`
	Name              string    `json:"name"`
	Version           string    `json:"version"`
	License           string    `json:"license"`
	DojoVersion       *string   `json:"dojo_version"`
	BuildTool         string    `json:"build_tool"`
}

// FailureMessage returns the most useful failure text for a terminal
// failure, normalizing known opaque server messages into actionable ones.
func (j *Job) FailureMessage() string {
	msg := j.Message
	if msg == "" {
		msg = j.StatusDescription
	}
	if msg == "" {
		return "unknown failure"
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "payload too large"):
		return "Request payload too large. The project files exceed the maximum allowed size. Try reducing file sizes or removing unnecessary files."
	case strings.Contains(msg, "Couldn't connect to cairo compilation service"):
		return "Cairo compilation service is currently unavailable. Please try again later."
	default:
		return msg
	}
}
