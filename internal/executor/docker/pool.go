package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Pool keeps PoolSize idle node containers running so a run only pays for
// a `docker exec`, not a container start.
//
// Containers are single-use: whoever acquires one owns it and must hand it
// back to discard when done. The manager notices the gap and starts a
// replacement.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool creates an empty pool. Nothing is started until Start.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, cfg.PoolSize),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool in the background.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting sandbox container pool",
			slog.String("image", p.config.Image),
			slog.Int("pool_size", p.config.PoolSize),
		)
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts the manager down and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("shutting down sandbox container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.discard(id)
			default:
				return
			}
		}
	})
}

// Acquire takes a warm container out of the pool, blocking until one is
// ready or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("container pool is stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manager tops the pool up whenever there is room.
func (p *Pool) manager() {
	defer p.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		for len(p.containers) < cap(p.containers) {
			id, err := p.create()
			if err != nil {
				p.logger.Error("failed to create sandbox container", slog.String("error", err.Error()))
				select {
				case <-time.After(time.Second):
				case <-p.done:
					return
				}
				break
			}

			select {
			case p.containers <- id:
			case <-p.done:
				p.discard(id)
				return
			}
		}
	}
}

// create starts an idle container running `sleep infinity`. Snippets are
// exec'd into it later.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,size=16m"},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image: p.config.Image,
		Cmd:   []string{"sleep", "infinity"},
		User:  "node",
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.discard(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// discard force-removes a container. Killing it also ends any exec still
// attached to it.
func (p *Pool) discard(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove sandbox container",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
	}
}
