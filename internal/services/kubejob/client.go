// Package kubejob submits ingestion jobs to a Kubernetes cluster through
// kubectl and tracks each job's completion by name.
package kubejob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

// Executor abstracts kubectl execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout string, err error)
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

// Client drives kubectl for job submission and status checks.
type Client struct {
	kubectl   string
	namespace string
	exec      Executor
	logger    *slog.Logger
	tempDir   string
}

// New constructs a client bound to one namespace.
func New(kubectl, namespace string, logger *slog.Logger, opts ...Option) (*Client, error) {
	kubectl = strings.TrimSpace(kubectl)
	if kubectl == "" {
		return nil, errors.New("kubectl binary required")
	}
	if namespace == "" {
		namespace = "default"
	}
	client := &Client{
		kubectl:   kubectl,
		namespace: namespace,
		exec:      commandExecutor{},
		logger:    logging.NewComponentLogger(logger, "kubejob"),
		tempDir:   os.TempDir(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Submit renders the ConfigMap and Job manifests for spec and applies both.
// The ConfigMap lands first so the job's volume binds on start.
func (c *Client) Submit(ctx context.Context, spec Spec) error {
	if spec.JobName == "" {
		return services.Wrap(services.ErrValidation, "kubejob", "submit", "job name required", nil)
	}
	if spec.Namespace == "" {
		spec.Namespace = c.namespace
	}

	cmYAML, err := RenderConfigMap(spec)
	if err != nil {
		return services.Wrap(services.ErrValidation, "kubejob", "submit", "render configmap", err)
	}
	jobYAML, err := RenderJob(spec)
	if err != nil {
		return services.Wrap(services.ErrValidation, "kubejob", "submit", "render job", err)
	}

	if err := c.apply(ctx, spec.JobName+"-configmap", cmYAML); err != nil {
		return services.Wrap(services.ErrExternalTool, "kubejob", "submit", "apply configmap", err)
	}
	if err := c.apply(ctx, spec.JobName+"-job", jobYAML); err != nil {
		return services.Wrap(services.ErrExternalTool, "kubejob", "submit", "apply job", err)
	}

	c.logger.Info("ingestion job submitted",
		logging.String(logging.FieldJobName, spec.JobName),
		logging.String(logging.FieldCollection, spec.Collection),
		logging.Int("file_count", len(spec.Files)),
	)
	return nil
}

// Succeeded reports whether the named job has at least one succeeded pod.
// A job kubectl cannot find yet counts as still pending, not an error.
func (c *Client) Succeeded(ctx context.Context, jobName string) (bool, error) {
	out, err := c.exec.Run(ctx, c.kubectl, []string{
		"get", "job", jobName,
		"-n", c.namespace,
		"-o", "jsonpath={.status.succeeded}",
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(out, "NotFound") {
			return false, nil
		}
		return false, services.Wrap(services.ErrExternalTool, "kubejob", "status", fmt.Sprintf("query job %s", jobName), err)
	}
	return strings.TrimSpace(out) != "" && strings.TrimSpace(out) != "0", nil
}

// Delete removes the job and its file-list ConfigMap. Best effort: missing
// resources are not an error.
func (c *Client) Delete(ctx context.Context, jobName string) error {
	var errs []error
	if _, err := c.exec.Run(ctx, c.kubectl, []string{
		"delete", "job", jobName, "-n", c.namespace, "--ignore-not-found",
	}); err != nil {
		errs = append(errs, fmt.Errorf("delete job: %w", err))
	}
	if _, err := c.exec.Run(ctx, c.kubectl, []string{
		"delete", "configmap", fileListName(jobName), "-n", c.namespace, "--ignore-not-found",
	}); err != nil {
		errs = append(errs, fmt.Errorf("delete configmap: %w", err))
	}
	return errors.Join(errs...)
}

// apply writes manifest to a temp file and runs kubectl apply against it.
func (c *Client) apply(ctx context.Context, name string, manifest []byte) error {
	path := filepath.Join(c.tempDir, fmt.Sprintf("%s-%d.yaml", name, time.Now().UnixNano()))
	if err := os.WriteFile(path, manifest, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(path)

	if _, err := c.exec.Run(ctx, c.kubectl, []string{"apply", "-f", path}); err != nil {
		return fmt.Errorf("kubectl apply: %w", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}
