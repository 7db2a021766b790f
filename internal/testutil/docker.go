// Package testutil provides shared helpers for tests that need a real
// Docker daemon or a running server: labeled disposable containers, free
// port discovery, and per-test cleanup.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// containerLabel marks every container the test suite creates, so cleanup
// can find them even after an interrupted run.
const containerLabel = "scribe-test"

// TestingT is the slice of *testing.T the docker helpers need.
type TestingT interface {
	Name() string
	Cleanup(func())
	Logf(format string, args ...any)
	Helper()
}

// DockerClient connects to the local daemon and registers a cleanup that
// removes every container this test labeled. Panics when Docker is not
// available; callers gate on that themselves (testing.Short or a ping).
func DockerClient(t TestingT) *client.Client {
	t.Helper()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		panic(fmt.Sprintf("failed to create docker client: %v", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		panic(fmt.Sprintf("docker is not running: %v", err))
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		byTest := filters.NewArgs()
		byTest.Add("label", fmt.Sprintf("%s=%s", containerLabel, t.Name()))
		if err := removeLabeled(ctx, cli, byTest, t.Logf); err != nil {
			t.Logf("container cleanup: %v", err)
		}
	})

	return cli
}

// UniqueContainerName builds a container name that cannot collide across
// parallel tests: scribe-test-<prefix>-<testname>-<random>.
func UniqueContainerName(t TestingT, prefix string) string {
	t.Helper()
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%s-%s-%s-%s", containerLabel, prefix, nameComponent(t.Name()), hex.EncodeToString(suffix))
}

// ContainerLabels returns the labels a test container must carry for
// cleanup to find it.
func ContainerLabels(t TestingT) map[string]string {
	return map[string]string{
		containerLabel: t.Name(),
	}
}

// CleanupAllTestContainers removes every container the suite ever labeled,
// regardless of which test made it. For recovering from interrupted runs.
func CleanupAllTestContainers(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer cli.Close()

	byLabel := filters.NewArgs()
	byLabel.Add("label", containerLabel)
	return removeLabeled(ctx, cli, byLabel, nil)
}

// removeLabeled stops and force-removes every container matching the
// filter. logf, when non-nil, receives per-container progress.
func removeLabeled(ctx context.Context, cli *client.Client, filter filters.Args, logf func(string, ...any)) error {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filter,
	})
	if err != nil {
		return fmt.Errorf("failed to list containers: %w", err)
	}

	stopTimeout := 10
	for _, c := range containers {
		_ = cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &stopTimeout})
		err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{
			Force:         true,
			RemoveVolumes: true,
		})
		if err != nil {
			if logf == nil {
				return fmt.Errorf("failed to remove container %s: %w", c.Names[0], err)
			}
			logf("failed to remove container %s: %v", c.Names[0], err)
			continue
		}
		if logf != nil {
			logf("removed container %s", c.Names[0])
		}
	}
	return nil
}

// nameComponent reduces a test name (which may contain slashes from
// subtests) to something Docker accepts in a container name.
func nameComponent(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '/', r == '_', r == '-':
			return '-'
		}
		return -1
	}, name)
	if len(mapped) > 30 {
		mapped = mapped[:30]
	}
	return mapped
}
