package run

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ritzau/msedit/pkg/logging"
)

// ProgressPrefix starts a stdout line that reports progress, as in
// "progress 0.5 loading networks"
const ProgressPrefix = "progress"

// ProcessRunner executes a snapshot with an external command. The document
// is written to a temporary file in the request's work directory and its
// path is passed as the last argument. The run ID, start path and user are
// exported as MSEDIT_RUN_ID, MSEDIT_START and MSEDIT_USER.
type ProcessRunner struct {
	Command string
	Args    []string
}

// NewProcessRunner splits a command line such as "xtmf-run --fast" into a
// runner. It returns nil for a blank command line.
func NewProcessRunner(commandLine string) *ProcessRunner {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil
	}
	return &ProcessRunner{Command: fields[0], Args: fields[1:]}
}

func (p *ProcessRunner) Run(ctx context.Context, req Request, progress ProgressFunc) error {
	dir := req.WorkDir
	if dir == "" {
		dir = "."
	}
	doc, err := os.CreateTemp(dir, "msedit-run-*.json")
	if err != nil {
		return fmt.Errorf("failed to stage model system: %w", err)
	}
	defer os.Remove(doc.Name())
	if _, err := doc.Write(req.Document); err != nil {
		doc.Close()
		return fmt.Errorf("failed to stage model system: %w", err)
	}
	if err := doc.Close(); err != nil {
		return fmt.Errorf("failed to stage model system: %w", err)
	}

	args := append(append([]string(nil), p.Args...), doc.Name())
	cmd := exec.CommandContext(ctx, p.Command, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"MSEDIT_RUN_ID="+req.ID,
		"MSEDIT_START="+req.Start,
		"MSEDIT_USER="+req.User,
	)
	// Children holding stdout open must not outlive a canceled run
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, sink := io.Pipe()
	cmd.Stdout = sink
	scanned := make(chan struct{})
	go func() {
		defer close(scanned)
		scanProgress(stdout, req.ID, progress)
	}()

	logging.Debug("starting run process", "run", req.ID, "command", p.Command, "dir", dir)
	err = cmd.Run()
	sink.Close()
	<-scanned
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s failed: %w\nOutput: %s", p.Command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func scanProgress(r io.Reader, runID string, progress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if value, msg, ok := parseProgress(line); ok {
			progress(value, msg)
			continue
		}
		logging.Trace("run output", "run", runID, "line", line)
	}
	// Drain so the process never blocks on a full pipe
	if scanner.Err() != nil {
		_, _ = io.Copy(io.Discard, r)
	}
}

func parseProgress(line string) (float64, string, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 3)
	if len(fields) < 2 || fields[0] != ProgressPrefix {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, "", false
	}
	value = min(max(value, 0), 1)
	msg := ""
	if len(fields) == 3 {
		msg = fields[2]
	}
	return value, msg, true
}
