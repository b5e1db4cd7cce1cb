// Package main serves the backtest engine over HTTP and gRPC.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	pb "github.com/Helambe-vaibhav/BACKTest/proto"
	"github.com/Helambe-vaibhav/BACKTest/services/arrowpipeline"
	"github.com/Helambe-vaibhav/BACKTest/services/clickhouse"
	"github.com/Helambe-vaibhav/BACKTest/services/config"
	"github.com/Helambe-vaibhav/BACKTest/services/engine"
)

// BacktestService runs strategies against the ClickHouse store and serves
// the results over gRPC and REST.
type BacktestService struct {
	pb.UnimplementedBacktestServiceServer
	engine *engine.Engine
	arrow  *arrowpipeline.Pipeline
	logger *zap.Logger
	config *config.Config
}

func NewBacktestService(cfg *config.Config, logger *zap.Logger) (*BacktestService, error) {
	store, err := clickhouse.NewStore(clickhouse.Config{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Table:    cfg.ClickHouse.Table,
		Username: cfg.ClickHouse.Username,
		Password: cfg.ClickHouse.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse store: %w", err)
	}

	return &BacktestService{
		engine: engine.New(store, logger),
		arrow:  arrowpipeline.NewPipeline(logger),
		logger: logger,
		config: cfg,
	}, nil
}

// RunBacktest implements the gRPC RunBacktest method.
func (s *BacktestService) RunBacktest(ctx context.Context, req *pb.RunBacktestRequest) (*pb.RunBacktestResponse, error) {
	startTime := time.Now()
	requestID := uuid.New().String()

	var cfg engine.StrategyConfig
	if err := json.Unmarshal(req.Strategy, &cfg); err != nil {
		return nil, fmt.Errorf("invalid strategy payload: %w", err)
	}
	if cfg.LegTimeoutSeconds == 0 && req.LegTimeoutSecs > 0 {
		cfg.LegTimeoutSeconds = int(req.LegTimeoutSecs)
	}
	if cfg.LegTimeoutSeconds == 0 {
		cfg.LegTimeoutSeconds = s.config.Engine.LegTimeoutSeconds
	}

	s.logger.Info("starting backtest",
		zap.String("request_id", requestID),
		zap.String("from", cfg.FromDate),
		zap.String("to", cfg.ToDate),
		zap.Int("legs", len(cfg.Legs)),
	)

	book, err := s.engine.Run(ctx, cfg)
	if err != nil {
		s.logger.Error("backtest failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return nil, err
	}

	resp := s.convertToGrpcResponse(book)
	resp.ExecutionTime = time.Since(startTime).Milliseconds()

	if req.OutputFormat == pb.OutputFormat_ARROW && len(book.Trades) > 0 {
		payload, err := s.arrow.ConvertTradeBook(book)
		if err != nil {
			return nil, err
		}
		resp.ArrowPayload = payload
	}

	s.logger.Info("backtest completed",
		zap.String("request_id", requestID),
		zap.Duration("execution_time", time.Since(startTime)),
		zap.Int("trades", len(book.Trades)),
		zap.Bool("partial", book.Partial),
	)
	return resp, nil
}

func (s *BacktestService) convertToGrpcResponse(book *engine.TradeBook) *pb.RunBacktestResponse {
	resp := &pb.RunBacktestResponse{
		RunId:       book.Manifest.RunID,
		Trades:      make([]*pb.Trade, len(book.Trades)),
		Partial:     book.Partial,
		TotalProfit: book.TotalProfit().String(),
		MaxDrawdown: book.MaxDrawdown().String(),
		Manifest: &pb.RunManifest{
			RunId:         book.Manifest.RunID,
			EngineVersion: book.Manifest.EngineVersion,
			ConfigHash:    book.Manifest.ConfigHash,
			FromDate:      book.Manifest.FromDate,
			ToDate:        book.Manifest.ToDate,
			Legs:          book.Manifest.Legs,
			CreatedAt:     book.Manifest.CreatedAt.UnixMilli(),
		},
	}
	for i, t := range book.Trades {
		resp.Trades[i] = &pb.Trade{
			LegName:    t.LegName,
			Ticker:     t.Ticker,
			Direction:  convertDirection(t.Direction),
			EntryTime:  t.EntryTime.UnixMilli(),
			EntryPrice: fmt.Sprintf("%g", t.EntryPrice),
			Target:     fmt.Sprintf("%g", t.Target),
			Stoploss:   fmt.Sprintf("%g", t.Stoploss),
			ExitTime:   t.ExitTime.UnixMilli(),
			ExitPrice:  fmt.Sprintf("%g", t.ExitPrice),
			ExitReason: t.ExitReason.String(),
			Lots:       int32(t.Lots),
			Profit:     t.Profit.String(),
			CumProfit:  t.CumProfit.String(),
			Drawdown:   t.Drawdown.String(),
		}
	}
	for _, le := range book.LegErrors {
		resp.LegFailures = append(resp.LegFailures, &pb.LegFailure{Leg: le.Leg, Error: le.Err})
	}
	return resp
}

func convertDirection(d string) pb.TradeDirection {
	if d == engine.DirectionSell {
		return pb.TradeDirection_SELL
	}
	return pb.TradeDirection_BUY
}

// HTTP handlers for REST API
func (s *BacktestService) setupHTTPRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/backtest", s.handleBacktestRequest)
		api.GET("/health", s.handleHealthCheck)
	}
}

func (s *BacktestService) handleBacktestRequest(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &pb.RunBacktestRequest{Strategy: body}
	format := c.DefaultQuery("format", "json")
	if format == "arrow" {
		req.OutputFormat = pb.OutputFormat_ARROW
	}

	resp, err := s.RunBacktest(c.Request.Context(), req)
	if err != nil {
		if engine.IsConfigError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("backtest request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if format == "arrow" {
		c.Data(http.StatusOK, "application/vnd.apache.arrow.stream", resp.ArrowPayload)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *BacktestService) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   engine.EngineVersion,
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting backtesting service",
		zap.String("version", engine.EngineVersion),
		zap.String("environment", cfg.Environment),
	)

	service, err := NewBacktestService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create backtest service", zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	pb.RegisterBacktestServiceServer(grpcServer, service)
	reflection.Register(grpcServer)

	gin.SetMode(gin.ReleaseMode)
	httpRouter := gin.New()
	httpRouter.Use(gin.Recovery())
	service.setupHTTPRoutes(httpRouter)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			logger.Fatal("Failed to listen on gRPC port", zap.Error(err))
		}

		logger.Info("Starting gRPC server", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("Failed to serve gRPC", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpRouter.Run(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")
	grpcServer.GracefulStop()
	logger.Info("Servers stopped")
}
