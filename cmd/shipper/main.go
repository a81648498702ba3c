package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/daemon"
	"github.com/Chichichkin/CloudWatchShipper/internal/logging/cloudwatch"
	"github.com/Chichichkin/CloudWatchShipper/internal/transport"
)

func main() {
	config := getConfig()

	client, err := cloudwatch.New(cloudwatch.Config{
		Region:   config.AWSRegion,
		Endpoint: config.AWSEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to create CloudWatch client: %v", err)
	}

	shipper, err := transport.New(client, transport.Config{
		LogGroupName:  config.LogGroupName,
		StreamPrefix:  config.StreamPrefix,
		FlushInterval: config.FlushInterval,
		BatchSize:     config.BatchSize,
	})
	if err != nil {
		log.Fatalf("Failed to create transport: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceConfig := daemon.Config{
		LogRootPath:     config.LogRootPath,
		ScanInterval:    config.ScanInterval,
		Workers:         config.Workers,
		FileQueueSize:   config.QueueSize,
		FileIdleTimeout: config.FileIdleTimeout,
	}

	service := daemon.NewService(ctx, serviceConfig, shipper)
	service.Start()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan
	log.Println("Received shutdown signal")

	service.Stop()
	if err := shipper.Close(); err != nil {
		log.Printf("Failed to close transport: %v", err)
	}
	log.Println("Shutting down...")
}

// ------------------------------------  code for reading config -----------------------------------------------------

type AppConfig struct {
	LogGroupName    string
	StreamPrefix    string
	FlushInterval   time.Duration
	BatchSize       int
	AWSRegion       string
	AWSEndpoint     string
	LogRootPath     string
	ScanInterval    time.Duration
	Workers         int
	QueueSize       int
	FileIdleTimeout time.Duration
}

func getConfig() AppConfig {
	logGroup := os.Getenv("LOG_GROUP")
	if logGroup == "" {
		log.Fatal("LOG_GROUP must be set")
	}

	return AppConfig{
		LogGroupName:    logGroup,
		StreamPrefix:    getEnv("STREAM_PREFIX", ""),
		FlushInterval:   getEnvAsDuration("FLUSH_INTERVAL", 3*time.Second),
		BatchSize:       getEnvAsInt("BATCH_SIZE", 10000),
		AWSRegion:       getEnv("AWS_REGION", ""),
		AWSEndpoint:     getEnv("AWS_ENDPOINT", ""),
		LogRootPath:     getEnv("LOG_PATH", "/var/log"),
		ScanInterval:    getEnvAsDuration("SCAN_INTERVAL", 30*time.Second),
		Workers:         getEnvAsInt("WORKERS", 4),
		QueueSize:       getEnvAsInt("QUEUE_SIZE", 50),
		FileIdleTimeout: getEnvAsDuration("FILE_IDLE_TIMEOUT", 5*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
