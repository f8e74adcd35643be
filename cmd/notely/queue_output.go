package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"notely/internal/api"
	"notely/internal/queue"
)

var statusOrder = []queue.Status{
	queue.StatusProcessing,
	queue.StatusPending,
	queue.StatusError,
	queue.StatusFailed,
}

func buildQueueStatusRows(counts map[string]int) [][]string {
	rows := make([][]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		count := counts[string(status)]
		if count == 0 {
			continue
		}
		rows = append(rows, []string{titleCase(string(status)), strconv.Itoa(count)})
	}
	return rows
}

func buildQueueListRows(jobs []api.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for i, job := range jobs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			shortID(job.ID),
			job.Name,
			job.ParentID,
			formatBytes(job.SizeBytes),
			titleCase(job.Status),
			formatJobProgress(job),
			formatETA(jobETA(job)),
		})
	}
	return rows
}

var queueListHeaders = []string{"#", "ID", "Name", "Note", "Size", "Status", "Progress", "ETA"}

var queueListAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight}

// jobETA is the remaining transfer time for an active job and the estimated
// start delay for a waiting one.
func jobETA(job api.Job) *int64 {
	if job.Progress != nil && job.Progress.ETASeconds != nil {
		return job.Progress.ETASeconds
	}
	return job.StartETASeconds
}

func formatJobProgress(job api.Job) string {
	if job.Progress == nil {
		return "-"
	}
	out := fmt.Sprintf("%.0f%%", job.Progress.Percent)
	if job.Progress.Speed > 0 {
		out += " @ " + formatSpeed(job.Progress.Speed)
	}
	return out
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

func formatETA(seconds *int64) string {
	if seconds == nil {
		return "-"
	}
	return formatDuration(time.Duration(*seconds) * time.Second)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// formatAge renders an API timestamp relative to now.
func formatAge(value string) string {
	t, ok := api.ParseTime(value)
	if !ok {
		return "-"
	}
	return humanize.Time(t)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

var sparkTicks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders speed samples as a single line of block characters
// scaled between the lowest and highest sample.
func sparkline(samples []api.Sample) string {
	if len(samples) == 0 {
		return ""
	}
	lo, hi := samples[0].Speed, samples[0].Speed
	for _, s := range samples[1:] {
		lo = min(lo, s.Speed)
		hi = max(hi, s.Speed)
	}
	var b strings.Builder
	for _, s := range samples {
		idx := 0
		if hi > lo {
			idx = int((s.Speed - lo) / (hi - lo) * float64(len(sparkTicks)-1))
		}
		b.WriteRune(sparkTicks[idx])
	}
	return b.String()
}

func secondsDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}
