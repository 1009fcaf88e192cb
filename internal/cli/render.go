package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quasarlabs/starkverify/internal/verify"
	"github.com/quasarlabs/starkverify/pkg/client"
)

const progressBarWidth = 20

// progressBar renders a fixed-width bar for a 0-100 percentage.
func progressBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * progressBarWidth / 100
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled) + "]"
}

// formatDuration renders a duration in whole seconds or m+s form.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// statusEmoji maps a job status to its display marker.
func statusEmoji(s client.JobStatus) string {
	switch s {
	case client.StatusSuccess:
		return "✅"
	case client.StatusCompileFailed, client.StatusFail:
		return "❌"
	case client.StatusUnknown:
		return "❓"
	default:
		return "⏳"
	}
}

// renderInlineStatus writes the live single-line watch status, rewriting
// the same terminal line each tick.
func renderInlineStatus(job *client.Job, p verify.Progress) {
	line := fmt.Sprintf("\r%s %s %s %3d%%  elapsed %s",
		statusEmoji(job.Status), progressBar(p.Percent), job.Status, p.Percent, formatDuration(p.Elapsed))
	if p.Remaining > 0 && !job.Status.Terminal() {
		line += fmt.Sprintf("  eta ~%s", formatDuration(p.Remaining))
	}
	// Pad over leftovers from a longer previous line.
	fmt.Printf("%-80s", line)
	if job.Status.Terminal() {
		fmt.Println()
	}
}

// renderBatchTick writes the aggregated one-line batch watch status.
func renderBatchTick(succeeded, failed, pending int) {
	fmt.Printf("\r⏳ batch: %d succeeded, %d failed, %d pending          ", succeeded, failed, pending)
	if pending == 0 {
		fmt.Println()
	}
}

// jobView is the JSON rendering of a job snapshot.
type jobView struct {
	JobID             string  `json:"job_id"`
	Status            string  `json:"status"`
	StatusDescription string  `json:"status_description,omitempty"`
	Message           string  `json:"message,omitempty"`
	ClassHash         string  `json:"class_hash,omitempty"`
	Name              string  `json:"name,omitempty"`
	Version           string  `json:"version,omitempty"`
	License           string  `json:"license,omitempty"`
	BuildTool         string  `json:"build_tool,omitempty"`
	DojoVersion       *string `json:"dojo_version,omitempty"`
	CreatedTimestamp  float64 `json:"created_timestamp,omitempty"`
	UpdatedTimestamp  float64 `json:"updated_timestamp,omitempty"`
}

// renderJob prints a full job snapshot in the requested format.
func renderJob(job *client.Job, format string) error {
	switch format {
	case "json":
		view := jobView{
			JobID:             job.JobID,
			Status:            job.Status.String(),
			StatusDescription: job.StatusDescription,
			Message:           job.Message,
			ClassHash:         job.ClassHash,
			Name:              job.Name,
			Version:           job.Version,
			License:           job.License,
			BuildTool:         job.BuildTool,
			DojoVersion:       job.DojoVersion,
			CreatedTimestamp:  job.CreatedTimestamp,
			UpdatedTimestamp:  job.UpdatedTimestamp,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "", "text":
		fmt.Printf("%s Job:    %s\n", statusEmoji(job.Status), job.JobID)
		fmt.Printf("   Status: %s (%d%%)\n", job.Status, progressPercentFor(job.Status))
		if job.ClassHash != "" {
			fmt.Printf("   Class:  %s\n", job.ClassHash)
		}
		if job.Name != "" {
			fmt.Printf("   Name:   %s\n", job.Name)
		}
		if job.Status.Failed() {
			fmt.Printf("   Error:  %s\n", job.FailureMessage())
		} else if job.StatusDescription != "" {
			fmt.Printf("   Detail: %s\n", job.StatusDescription)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (expected text or json)", format)
	}
}

// progressPercentFor mirrors the poller's stage percentages for one-shot
// status rendering.
func progressPercentFor(s client.JobStatus) int {
	switch {
	case s.Terminal():
		return 100
	case s == client.StatusSubmitted:
		return 10
	case s == client.StatusProcessing:
		return 40
	case s == client.StatusCompiled:
		return 85
	default:
		return 0
	}
}

// truncateHash shortens a class hash for table output.
func truncateHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-4:]
}
