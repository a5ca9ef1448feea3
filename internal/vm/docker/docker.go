// Package docker is the default vm.Provisioner: every session's VM is a
// long-lived, network-disabled Docker container kept alive with
// `sleep infinity` between calls, so [POOL] can reuse it across nested
// and repeated invocations instead of paying container startup cost
// per call.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog"

	"github.com/usesandbox/sandbox/internal/vm"
)

const workDir = "/home/sandbox"

// Config is the fixed image and resource envelope every sandbox
// container is created with.
type Config struct {
	Image         string
	MemoryLimitKb int64
	CPUQuota      int64
	PidsLimit     int64
}

func DefaultConfig() Config {
	return Config{
		Image:         "node:20-alpine",
		MemoryLimitKb: 256 * 1024,
		CPUQuota:      100000,
		PidsLimit:     64,
	}
}

type Provisioner struct {
	cli    *client.Client
	cfg    Config
	logger *zerolog.Logger
}

func New(cfg Config, logger *zerolog.Logger) (*Provisioner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Provisioner{cli: cli, cfg: cfg, logger: logger}, nil
}

var _ vm.Provisioner = (*Provisioner)(nil)

func (p *Provisioner) EnsureImage(ctx context.Context) error {
	_, _, err := p.cli.ImageInspectWithRaw(ctx, p.cfg.Image)
	if err == nil {
		return nil
	}
	p.logger.Info().Str("image", p.cfg.Image).Msg("pulling sandbox vm image")
	reader, err := p.cli.ImagePull(ctx, p.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", p.cfg.Image, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	p.logger.Info().Str("image", p.cfg.Image).Msg("sandbox vm image ready")
	return nil
}

func (p *Provisioner) Create(ctx context.Context, sessionKey string) (string, error) {
	pidsLimit := p.cfg.PidsLimit
	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:           p.cfg.Image,
		Cmd:             []string{"sleep", "infinity"},
		Tty:             false,
		OpenStdin:       true,
		NetworkDisabled: true,
		WorkingDir:      workDir,
		User:            "nobody",
		Labels:          map[string]string{"sandbox.session": sessionKey},
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     p.cfg.MemoryLimitKb * 1024,
			MemorySwap: p.cfg.MemoryLimitKb * 1024,
			CPUQuota:   p.cfg.CPUQuota,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode: "none",
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Tmpfs: map[string]string{
			workDir: "rw,exec,nosuid,size=128m,mode=1777",
			"/tmp":  "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create sandbox container: %w", err)
	}
	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = p.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("start sandbox container: %w", err)
	}
	p.logger.Debug().Str("container", resp.ID).Str("session", sessionKey).Msg("sandbox vm created")
	return resp.ID, nil
}

func (p *Provisioner) WriteFiles(ctx context.Context, vmID string, files map[string][]byte) error {
	for relPath, content := range files {
		if err := p.writeFile(ctx, vmID, relPath, content); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provisioner) writeFile(ctx context.Context, vmID, relPath string, content []byte) error {
	execResp, err := p.cli.ContainerExecCreate(ctx, vmID, container.ExecOptions{
		Cmd:         []string{"sh", "-c", fmt.Sprintf("mkdir -p $(dirname %q) && cat > %q", relPath, relPath)},
		AttachStdin: true,
	})
	if err != nil {
		return fmt.Errorf("create write exec for %s: %w", relPath, err)
	}
	attach, err := p.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("attach write exec for %s: %w", relPath, err)
	}
	if _, err := attach.Conn.Write(content); err != nil {
		attach.Close()
		return fmt.Errorf("write %s into sandbox: %w", relPath, err)
	}
	_ = attach.CloseWrite()
	attach.Close()

	for {
		inspect, err := p.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return fmt.Errorf("inspect write exec for %s: %w", relPath, err)
		}
		if !inspect.Running {
			if inspect.ExitCode != 0 {
				return fmt.Errorf("writing %s into sandbox exited %d", relPath, inspect.ExitCode)
			}
			return nil
		}
	}
}

func (p *Provisioner) RunCommand(ctx context.Context, vmID string, cmd []string, stdin []byte, sudo bool) (*vm.CommandResult, error) {
	start := time.Now()
	execUser := "nobody"
	if sudo {
		execUser = "root"
	}
	execResp, err := p.cli.ContainerExecCreate(ctx, vmID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		User:         execUser,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("create run exec: %w", err)
	}
	attach, err := p.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach run exec: %w", err)
	}
	defer attach.Close()

	if len(stdin) > 0 {
		if _, err := attach.Conn.Write(stdin); err != nil {
			return nil, fmt.Errorf("write stdin to sandbox command: %w", err)
		}
	}
	_ = attach.CloseWrite()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- copyErr
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("read sandbox command output: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	inspect, err := p.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect run exec: %w", err)
	}

	return &vm.CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: inspect.ExitCode,
		TimeMs:   time.Since(start).Milliseconds(),
	}, nil
}

func (p *Provisioner) Stop(ctx context.Context, vmID string) error {
	if err := p.cli.ContainerRemove(ctx, vmID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("stop sandbox container: %w", err)
	}
	return nil
}
