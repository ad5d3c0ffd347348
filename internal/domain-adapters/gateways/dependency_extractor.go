package gateways

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ochairo/libbundle/internal/domain/entities"
	"github.com/ochairo/libbundle/internal/domain/interfaces"
)

// resolvedPathField is the whitespace-separated field holding the resolved
// path in a line such as "libz.so.1 => /lib/libz.so.1 (0x7f...)"
const resolvedPathField = 2

// staticMarkers are phrases introspection tools print for files that the
// dynamic loader does not handle. Such files have no dependencies.
var staticMarkers = []string{
	"not a dynamic executable",
	"not a valid dynamic program",
	"statically linked",
}

// DependencyExtractor runs the dynamic-linker introspection command (ldd)
// against one file and collects the resolved dependency paths it reports
type DependencyExtractor struct {
	command string
	timeout time.Duration
	logger  interfaces.Logger
}

// NewDependencyExtractor creates an extractor that invokes command with the
// target path as its only argument. A zero timeout means no deadline.
func NewDependencyExtractor(command string, timeout time.Duration, logger interfaces.Logger) *DependencyExtractor {
	if command == "" {
		command = entities.DefaultIntrospectCommand
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &DependencyExtractor{
		command: command,
		timeout: timeout,
		logger:  logger,
	}
}

// Extract returns the sorted set of existing files path resolves against.
// When filter is non-empty, only output lines containing it are considered.
func (e *DependencyExtractor) Extract(ctx context.Context, path, filter string) ([]string, error) {
	output, err := e.run(ctx, path)
	if err != nil {
		return nil, err
	}
	return ParseDependencies(output, filter, isRegularFile), nil
}

func (e *DependencyExtractor) run(ctx context.Context, path string) (string, error) {
	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	//nolint:gosec // G204: the introspection command is operator configuration
	cmd := exec.CommandContext(execCtx, e.command, path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Do not wait forever on grandchildren holding the output pipes after a kill
	cmd.WaitDelay = time.Second

	startTime := time.Now()
	err := cmd.Run()
	e.logger.Debug("introspection finished",
		interfaces.F("command", e.command),
		interfaces.F("target", path),
		interfaces.F("duration", time.Since(startTime)))

	if err == nil {
		return stdout.String(), nil
	}

	toolErr := &entities.ToolInvocationError{
		Tool:   e.command,
		Target: path,
		Stderr: strings.TrimSpace(stderr.String()),
		Err:    err,
	}

	var exitErr *exec.ExitError
	//nolint:gocritic // ifElseChain: checking different error types, not suitable for switch
	if execCtx.Err() == context.DeadlineExceeded {
		toolErr.Err = fmt.Errorf("introspection timeout after %v", e.timeout)
		toolErr.ExitCode = -1
	} else if errors.As(err, &exitErr) {
		if reportsNoDependencies(stdout.String()) || reportsNoDependencies(stderr.String()) {
			e.logger.Debug("not a dynamic object", interfaces.F("target", path))
			return "", nil
		}
		toolErr.ExitCode = exitErr.ExitCode()
	} else {
		toolErr.ExitCode = -1
	}

	return "", toolErr
}

func reportsNoDependencies(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range staticMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ParseDependencies extracts resolved dependency paths from introspection
// output. A line is skipped when filter is non-empty and the line does not
// contain it. Otherwise its third whitespace-separated field is kept if it
// is an absolute path for which exists returns true. The result is sorted
// and contains no duplicates.
func ParseDependencies(output, filter string, exists func(string) bool) []string {
	seen := make(map[string]struct{})
	deps := make([]string, 0)

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if filter != "" && !strings.Contains(line, filter) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) <= resolvedPathField {
			continue
		}

		candidate := fields[resolvedPathField]
		if !filepath.IsAbs(candidate) || !exists(candidate) {
			continue
		}

		candidate = filepath.Clean(candidate)
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		deps = append(deps, candidate)
	}

	sort.Strings(deps)
	return deps
}

// isRegularFile reports whether path names a regular file, following symlinks
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
