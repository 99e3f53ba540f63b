package main

import (
	"context"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	collectorlogs "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	collectormetrics "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	collectortrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	_ "google.golang.org/grpc/encoding/gzip"
)

const (
	maxSendMsgSize = 4 * 1024 * 1024
	maxRecvMsgSize = 15 * 1024 * 1024

	maxConnectionIdle     = 30 * time.Minute
	maxConnectionAge      = time.Hour
	maxConnectionAgeGrace = 5 * time.Minute
	keepAliveTime         = 2 * time.Minute
	keepAliveTimeout      = 20 * time.Second
)

type traceService struct {
	collectortrace.UnimplementedTraceServiceServer
	sink *Sink
}

func (s *traceService) Export(_ context.Context, req *collectortrace.ExportTraceServiceRequest) (*collectortrace.ExportTraceServiceResponse, error) {
	s.sink.ConsumeTraces(req)
	return &collectortrace.ExportTraceServiceResponse{}, nil
}

type metricsService struct {
	collectormetrics.UnimplementedMetricsServiceServer
	sink *Sink
}

func (s *metricsService) Export(_ context.Context, req *collectormetrics.ExportMetricsServiceRequest) (*collectormetrics.ExportMetricsServiceResponse, error) {
	s.sink.ConsumeMetrics(req)
	return &collectormetrics.ExportMetricsServiceResponse{}, nil
}

type logsService struct {
	collectorlogs.UnimplementedLogsServiceServer
	sink *Sink
}

func (s *logsService) Export(_ context.Context, req *collectorlogs.ExportLogsServiceRequest) (*collectorlogs.ExportLogsServiceResponse, error) {
	s.sink.ConsumeLogs(req)
	return &collectorlogs.ExportLogsServiceResponse{}, nil
}

// initGRPCReceiver serves the three OTLP gRPC export services until ctx ends.
func initGRPCReceiver(ctx context.Context, port int, sink *Sink) error {
	addr := fmt.Sprintf("localhost:%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxSendMsgSize(maxSendMsgSize),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     maxConnectionIdle,
			MaxConnectionAge:      maxConnectionAge,
			MaxConnectionAgeGrace: maxConnectionAgeGrace,
			Time:                  keepAliveTime,
			Timeout:               keepAliveTimeout,
		}),
	}

	srv := grpc.NewServer(serverOpts...)
	collectortrace.RegisterTraceServiceServer(srv, &traceService{sink: sink})
	collectormetrics.RegisterMetricsServiceServer(srv, &metricsService{sink: sink})
	collectorlogs.RegisterLogsServiceServer(srv, &logsService{sink: sink})

	go func() {
		log.Infof("OTLP gRPC receiver listening on %s", addr)
		if err := srv.Serve(lis); err != nil {
			log.Errorf("gRPC server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		log.Info("stopping gRPC receiver...")
		srv.GracefulStop()
	}()

	return nil
}
