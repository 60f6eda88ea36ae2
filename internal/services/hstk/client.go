// Package hstk wraps the storage vendor's hs CLI: metadata tags, placement
// objectives, and the mount recovery dance for stale NFS handles.
package hstk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

// staleHandleMarker is the substring the CLI prints when an NFS file handle
// has gone stale. Matching is textual: the CLI does not expose structured
// errors.
const staleHandleMarker = "Stale file handle"

// Result captures the output of one CLI invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (Result, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client issues hs CLI commands with per-call timeouts and one automatic
// mount-refresh retry on stale handles.
type Client struct {
	binary         string
	refreshCommand []string
	timeout        time.Duration
	exec           Executor
	logger         *slog.Logger
}

// New constructs a client. refreshCommand may be empty, which disables
// stale-handle recovery.
func New(binary string, refreshCommand []string, timeoutSeconds int, logger *slog.Logger, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("hs binary required")
	}
	client := &Client{
		binary:         binary,
		refreshCommand: refreshCommand,
		timeout:        time.Duration(timeoutSeconds) * time.Second,
		exec:           commandExecutor{},
		logger:         logging.NewComponentLogger(logger, "hstk"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SetTag assigns name=value on path. Bare tag names get the user. namespace;
// names already qualified pass through.
func (c *Client) SetTag(ctx context.Context, path, name, value string) error {
	spec := fmt.Sprintf("%s=%s", qualifyTag(name), value)
	_, err := c.run(ctx, []string{"tag", "set", spec, path})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "hstk", "set_tag", fmt.Sprintf("tag %s on %s", spec, path), err)
	}
	return nil
}

// SetTagRecursive assigns name=value on path and everything below it.
func (c *Client) SetTagRecursive(ctx context.Context, path, name, value string) error {
	spec := fmt.Sprintf("%s=%s", qualifyTag(name), value)
	_, err := c.run(ctx, []string{"tag", "set", "-r", spec, path})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "hstk", "set_tag_recursive", fmt.Sprintf("tag %s under %s", spec, path), err)
	}
	return nil
}

// HasTag reports whether path carries name=value. The CLI evaluates the
// predicate server-side and prints TRUE or FALSE.
func (c *Client) HasTag(ctx context.Context, path, name, value string) (bool, error) {
	expr := fmt.Sprintf("has_tag('%s=%s')", qualifyTag(name), value)
	res, err := c.run(ctx, []string{"eval", path, "-e", expr})
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "hstk", "has_tag", "evaluate tag predicate", err)
	}
	return strings.TrimSpace(res.Stdout) == "TRUE", nil
}

// GetTag returns path's value for the named tag, empty when unset.
func (c *Client) GetTag(ctx context.Context, path, name string) (string, error) {
	expr := fmt.Sprintf("get_tag('%s')", qualifyTag(name))
	res, err := c.run(ctx, []string{"eval", path, "-e", expr})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "hstk", "get_tag", "read tag", err)
	}
	return strings.Trim(strings.TrimSpace(res.Stdout), `"'`), nil
}

// ListTagMatches returns every path under root carrying the named tag,
// optionally constrained to an exact value (empty value matches any). The
// CLI has no find-by-tag query, so this runs one recursive listing and
// matches tag blocks textually: each block opens with an unindented path
// line, followed by indented name=value lines.
func (c *Client) ListTagMatches(ctx context.Context, root, name, value string) ([]string, error) {
	res, err := c.run(ctx, []string{"tag", "list", "-r", root})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "hstk", "list_tag_matches", fmt.Sprintf("list tags under %s", root), err)
	}
	return matchTagBlocks(res.Stdout, qualifyTag(name), value), nil
}

func matchTagBlocks(out, name, value string) []string {
	var matches []string
	current := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			current = ""
			continue
		}
		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			current = strings.TrimSuffix(strings.TrimSpace(line), ":")
			continue
		}
		if current == "" {
			continue
		}
		tag, tagValue, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found || strings.TrimSpace(tag) != name {
			continue
		}
		tagValue = strings.Trim(strings.TrimSpace(tagValue), `"'`)
		if value == "" || tagValue == value {
			matches = append(matches, current)
			current = ""
		}
	}
	return matches
}

// AddObjective applies a placement objective to path.
func (c *Client) AddObjective(ctx context.Context, objective, path string) error {
	_, err := c.run(ctx, []string{"objective", "add", objective, path})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "hstk", "add_objective", fmt.Sprintf("apply %s to %s", objective, path), err)
	}
	return nil
}

// RemoveObjective removes a placement objective from path.
func (c *Client) RemoveObjective(ctx context.Context, objective, path string) error {
	_, err := c.run(ctx, []string{"objective", "delete", objective, path})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "hstk", "remove_objective", fmt.Sprintf("remove %s from %s", objective, path), err)
	}
	return nil
}

// ListObjectives reports active objectives on path, one per output line.
func (c *Client) ListObjectives(ctx context.Context, path string) ([]string, error) {
	res, err := c.run(ctx, []string{"objective", "list", path})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "hstk", "list_objectives", "list objectives", err)
	}
	var objectives []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			objectives = append(objectives, line)
		}
	}
	return objectives, nil
}

// run executes one CLI call under the configured timeout. A stale-handle
// marker in stderr triggers one mount refresh and a single retry; a second
// failure surfaces to the caller.
func (c *Client) run(ctx context.Context, args []string) (Result, error) {
	res, err := c.runOnce(ctx, args)
	if !c.isStale(res, err) {
		return res, err
	}

	c.logger.Warn("stale file handle detected, refreshing mounts",
		logging.String("command", strings.Join(args, " ")))
	if refreshErr := c.refreshMounts(ctx); refreshErr != nil {
		c.logger.Error("mount refresh failed", logging.Error(refreshErr))
		return res, err
	}
	return c.runOnce(ctx, args)
}

func (c *Client) runOnce(ctx context.Context, args []string) (Result, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	res, err := c.exec.Run(callCtx, c.binary, args)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return res, services.Wrap(services.ErrTimeout, "hstk", "run", fmt.Sprintf("%s timed out after %s", c.binary, c.timeout), err)
		}
		if res.Stderr != "" {
			return res, fmt.Errorf("%w: %s", err, strings.TrimSpace(res.Stderr))
		}
		return res, err
	}
	// The CLI sometimes exits zero while reporting failure on stderr.
	if strings.Contains(res.Stderr, staleHandleMarker) {
		return res, errors.New(staleHandleMarker)
	}
	return res, nil
}

func (c *Client) isStale(res Result, err error) bool {
	if len(c.refreshCommand) == 0 {
		return false
	}
	if strings.Contains(res.Stderr, staleHandleMarker) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), staleHandleMarker)
}

func (c *Client) refreshMounts(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	_, err := c.exec.Run(refreshCtx, c.refreshCommand[0], c.refreshCommand[1:])
	return err
}

func qualifyTag(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return "user." + name
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return Result{Stdout: stdout.String(), Stderr: stderr.String()}, err
}
