package database

import (
	"fmt"
	"net"

	"task_chat_service/pkg/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCHealthServer start grpc health service on port
func NewGRPCHealthServer(port string) (*grpc.Server, *health.Server, error) {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, nil, fmt.Errorf("grpc listen :%s: %w", port, err)
	}

	server := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	go func() {
		logger.Log.Info("grpc health listening", zap.String("port", port))
		if err := server.Serve(listener); err != nil {
			logger.Log.Error("grpc serve", zap.Error(err))
		}
	}()

	return server, hs, nil
}
