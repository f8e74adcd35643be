package main

import (
	"testing"
	"time"

	"notely/internal/api"
)

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                             "0s",
		42 * time.Second:              "42s",
		3*time.Minute + 5*time.Second: "3m05s",
		2*time.Hour + 7*time.Minute:   "2h07m",
		1500 * time.Millisecond:       "2s",
	}
	for in, want := range cases {
		if got := formatDuration(in); got != want {
			t.Fatalf("formatDuration(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestJobETAPrefersTransferProgress(t *testing.T) {
	remaining, start := int64(5), int64(60)
	job := api.Job{StartETASeconds: &start}
	if got := formatETA(jobETA(job)); got != "1m00s" {
		t.Fatalf("expected start eta, got %q", got)
	}
	job.Progress = &api.Progress{Percent: 50, ETASeconds: &remaining}
	if got := formatETA(jobETA(job)); got != "5s" {
		t.Fatalf("expected transfer eta, got %q", got)
	}
	if got := formatETA(nil); got != "-" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestBuildQueueStatusRowsSkipsEmpty(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"pending": 3, "failed": 0, "processing": 1})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %v", rows)
	}
	if rows[0][0] != "Processing" || rows[1][0] != "Pending" || rows[1][1] != "3" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestSparkline(t *testing.T) {
	samples := []api.Sample{{Speed: 0}, {Speed: 50}, {Speed: 100}}
	if got := sparkline(samples); got != "▁▄█" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	flat := []api.Sample{{Speed: 10}, {Speed: 10}}
	if got := sparkline(flat); got != "▁▁" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if sparkline(nil) != "" {
		t.Fatal("expected empty sparkline")
	}
}

func TestFormatSpeedAndBytes(t *testing.T) {
	if got := formatBytes(2048); got != "2.0 KiB" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := formatSpeed(0); got != "-" {
		t.Fatalf("formatSpeed(0) = %q", got)
	}
	if got := formatSpeed(1024); got != "1.0 KiB/s" {
		t.Fatalf("formatSpeed = %q", got)
	}
}
