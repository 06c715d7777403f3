package testtool

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// SetupContainer 啟動容器，回傳第一個 exposed port 對外的 host / port
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, string, string, error) {
	if len(req.ExposedPorts) == 0 {
		return nil, "", "", fmt.Errorf("container [%s] exposes no port", req.Image)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("start [%s]: %w", req.Image, err)
	}

	host, err := container.Host(ctx)
	if err == nil {
		var mapped nat.Port
		if mapped, err = container.MappedPort(ctx, nat.Port(req.ExposedPorts[0])); err == nil {
			return container, host, mapped.Port(), nil
		}
	}

	_ = container.Terminate(ctx)
	return nil, "", "", fmt.Errorf("resolve [%s] endpoint: %w", req.Image, err)
}
