package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rutero-field/internal/config"
	"rutero-field/internal/consumer"
	"rutero-field/internal/logger"
	"rutero-field/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "rutero-field")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting rutero-field service")

	svc, err := service.NewEngineService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create field engine", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gpsConsumer *consumer.GpsConsumer
	if mqttClient := svc.MQTTClient(); mqttClient != nil {
		gpsConsumer = consumer.NewGpsConsumer(mqttClient, svc.Track, cfg.MQTT.Topic, cfg.MQTT.QoS, log)
		if err := gpsConsumer.Start(); err != nil {
			log.Fatal("Failed to start gps consumer", zap.Error(err))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := svc.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
		cancel()
	}

	if gpsConsumer != nil {
		gpsConsumer.Stop()
	}
	if err := svc.Stop(ctx); err != nil {
		log.Error("Error stopping service", zap.Error(err))
	}

	log.Info("Service stopped")
}
