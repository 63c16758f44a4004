package agent

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
)

// ContainerOpts configures a locally containerized agent. This is for
// subjects shipped as images rather than already-running endpoints.
type ContainerOpts struct {
	Image         string
	Env           map[string]string
	ContainerPort int    // port the agent listens on inside the container
	TaskPath      string // URL path tasks are POSTed to, e.g. "/task"
	CPULimit      float64
	MemoryLimit   int64
	StartTimeout  time.Duration
}

// Container is a running containerized agent.
type Container struct {
	ID       string
	HostPort int
	taskPath string
	cli      *client.Client
}

// Endpoint is the task submission URL for an HTTPClient.
func (c *Container) Endpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", c.HostPort, c.taskPath)
}

// Stop force-removes the container and closes the docker client.
func (c *Container) Stop() {
	if c.cli == nil {
		return
	}
	c.cli.ContainerRemove(context.Background(), c.ID, client.ContainerRemoveOptions{Force: true})
	c.cli.Close()
}

// StartContainer launches the agent image with its port published on the
// host loopback and waits for it to accept connections.
func StartContainer(ctx context.Context, opts *ContainerOpts) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}

	hostPort, err := FindFreePort()
	if err != nil {
		cli.Close()
		return nil, err
	}

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	portKey := network.MustParsePort(fmt.Sprintf("%d/tcp", opts.ContainerPort))
	initTrue := true
	hostCfg := &container.HostConfig{
		Init: &initTrue,
		PortBindings: network.PortMap{
			portKey: []network.PortBinding{{HostIP: netip.MustParseAddr("127.0.0.1"), HostPort: fmt.Sprintf("%d", hostPort)}},
		},
	}
	if opts.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(opts.CPULimit * 1e9)
	}
	if opts.MemoryLimit > 0 {
		hostCfg.Memory = opts.MemoryLimit
	}

	containerCfg := &container.Config{
		Image:        opts.Image,
		Env:          envSlice,
		ExposedPorts: network.PortSet{portKey: struct{}{}},
		Labels:       map[string]string{"gauntlet": "true"},
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("creating agent container: %w", err)
	}
	containerID := createResp.ID

	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
		cli.Close()
		return nil, fmt.Errorf("starting agent container: %w", err)
	}

	startTimeout := opts.StartTimeout
	if startTimeout == 0 {
		startTimeout = 30 * time.Second
	}
	if err := waitForPort(hostPort, startTimeout); err != nil {
		logReader, _ := cli.ContainerLogs(context.Background(), containerID, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: "100"})
		if logReader != nil {
			logData, _ := io.ReadAll(logReader)
			logReader.Close()
			fmt.Fprintf(os.Stderr, "Agent container logs:\n%s\n", string(logData))
		}
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
		cli.Close()
		return nil, fmt.Errorf("agent container did not become ready: %w", err)
	}

	taskPath := opts.TaskPath
	if taskPath == "" {
		taskPath = "/task"
	}
	return &Container{ID: containerID, HostPort: hostPort, taskPath: taskPath, cli: cli}, nil
}

func FindFreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port, nil
}

func waitForPort(port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("port %d not ready after %s", port, timeout)
}
