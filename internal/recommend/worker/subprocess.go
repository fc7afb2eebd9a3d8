// Courserank - Course Recommendation Engine
// Copyright 2026 Courserank Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package worker provides out-of-process implementations of the
// recommend.Worker contract. The in-process implementation lives in the
// recommend package itself; this package covers the subprocess strategy,
// where an external scorer owns its own data access and reports results
// on stdout.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/courserank/courserank/internal/recommend"
)

// Subprocess runs an external scorer process per request. The process
// receives the user id and count as trailing arguments, may write
// arbitrary diagnostic noise, and must emit a single JSON array as its
// final stdout block:
//
//	[{"id": "42", "title": "...", "score_percentage": 87, "method": "hybrid"}, ...]
//
// stdout is drained fully before parsing; a partial read is never a valid
// result. A non-zero exit, a killed process, or a missing/malformed
// trailing array are all reported as errors, which the engine translates
// into a fallback response.
type Subprocess struct {
	command []string
	logger  zerolog.Logger
}

// NewSubprocess creates a subprocess worker from an argv slice (first
// element is the binary).
func NewSubprocess(command []string, logger zerolog.Logger) (*Subprocess, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("subprocess worker requires a command")
	}
	return &Subprocess{
		command: command,
		logger:  logger.With().Str("component", "worker-subprocess").Logger(),
	}, nil
}

// Name identifies the worker implementation.
func (s *Subprocess) Name() string {
	return "subprocess"
}

// ComputeHybridScores launches the scorer process and parses its output.
// Cancellation of ctx kills the process; the engine's timeout budget
// therefore bounds the subprocess wall clock as well.
func (s *Subprocess) ComputeHybridScores(ctx context.Context, in recommend.PrimaryInput) ([]recommend.Recommendation, error) {
	args := append(append([]string{}, s.command[1:]...), in.UserID, strconv.Itoa(in.Count))
	cmd := exec.CommandContext(ctx, s.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run waits for the process to exit, which drains stdout completely.
	err := cmd.Run()
	if stderr.Len() > 0 {
		s.logger.Debug().Str("stderr", truncateForLog(stderr.String())).Msg("Scorer process diagnostics")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("scorer process cancelled: %w", ctxErr)
		}
		return nil, fmt.Errorf("scorer process failed: %w", err)
	}

	records, err := parseTrailingArray(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("scorer output: %w", err)
	}
	return records, nil
}

// wireRecord is the subprocess interchange record. Ids may arrive as JSON
// strings or numbers depending on the scorer implementation.
type wireRecord struct {
	ID              flexibleID `json:"id"`
	Title           string     `json:"title"`
	ScorePercentage float64    `json:"score_percentage"`
	Method          string     `json:"method"`
}

// flexibleID accepts both "42" and 42 on the wire.
type flexibleID int

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("course id %q is not numeric", s)
		}
		*f = flexibleID(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n)
	return nil
}

// parseTrailingArray extracts the final JSON array block from the drained
// stdout, treating every preceding line as diagnostic noise. It scans
// line boundaries from the end so multi-line (pretty-printed) arrays
// still parse.
func parseTrailingArray(output []byte) ([]recommend.Recommendation, error) {
	text := strings.TrimRight(string(output), " \t\r\n")
	if text == "" {
		return nil, fmt.Errorf("empty output, no trailing JSON array")
	}

	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(strings.Join(lines[i:], "\n"))
		if !strings.HasPrefix(candidate, "[") {
			continue
		}
		var wire []wireRecord
		if err := json.Unmarshal([]byte(candidate), &wire); err != nil {
			continue
		}
		records := make([]recommend.Recommendation, 0, len(wire))
		for _, w := range wire {
			method := w.Method
			if method == "" {
				method = recommend.MethodHybrid
			}
			records = append(records, recommend.Recommendation{
				CourseID:        int(w.ID),
				Title:           w.Title,
				ScorePercentage: int(w.ScorePercentage + 0.5),
				Method:          method,
			})
		}
		return records, nil
	}

	return nil, fmt.Errorf("no well-formed trailing JSON array in output")
}

func truncateForLog(s string) string {
	const maxLen = 2048
	if len(s) > maxLen {
		return s[:maxLen] + "...(truncated)"
	}
	return s
}

// compile-time interface check
var _ recommend.Worker = (*Subprocess)(nil)
