package executor

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"

	"testdeck/internal/store"
)

// Docker runs each test inside a container of the configured runner
// image. The test path is handed to the runner as its command argument
// and the container exit code decides pass/fail.
type Docker struct {
	client  *client.Client
	image   string
	timeout time.Duration
}

// NewDocker creates a Docker-backed executor. The client is initialized
// from the standard environment variables (DOCKER_HOST, etc.).
func NewDocker(runnerImage string, timeout time.Duration) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Docker{client: cli, image: runnerImage, timeout: timeout}, nil
}

// Run starts a runner container for the job, waits for it to exit, and
// maps exit code 0 to pass. Container logs become the result detail.
func (d *Docker) Run(ctx context.Context, job *store.Job) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Check if the image exists locally first to save time.
	if _, err := d.client.ImageInspect(runCtx, d.image); err != nil {
		reader, err := d.client.ImagePull(runCtx, d.image, image.PullOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", d.image, err)
		}
		io.Copy(io.Discard, reader)
		reader.Close()
	}

	cfg := &container.Config{
		Image: d.image,
		Cmd:   []string{job.TestPath},
		Env: []string{
			"TESTDECK_JOB_ID=" + job.ID,
			"TESTDECK_ORG_ID=" + job.OrgID,
			"TESTDECK_APP_VERSION_ID=" + job.AppVersionID,
			"TESTDECK_TARGET=" + string(job.Target),
		},
		Tty: true,
	}
	created, err := d.client.ContainerCreate(runCtx, cfg, nil, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rmCancel()
		d.client.ContainerRemove(rmCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	start := time.Now()
	if err := d.client.ContainerStart(runCtx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(runCtx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		exitCode = status.StatusCode
	case <-runCtx.Done():
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		timeout := 5
		d.client.ContainerStop(stopCtx, created.ID, container.StopOptions{Timeout: &timeout})
		return nil, runCtx.Err()
	}
	elapsed := time.Since(start)

	detail := d.collectLogs(created.ID)
	if detail == "" {
		detail = fmt.Sprintf("runner exited with code %d", exitCode)
	}
	return &Result{Passed: exitCode == 0, Detail: detail, Duration: elapsed}, nil
}

// collectLogs reads the container output, capped so oversized runner logs
// don't balloon the job record.
func (d *Docker) collectLogs(containerID string) string {
	const maxDetail = 4096

	logCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rc, err := d.client.ContainerLogs(logCtx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return ""
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDetail))
	if err != nil {
		return ""
	}
	return string(data)
}
