package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comicbot/api"
	"comicbot/app"
	"comicbot/config"
	"comicbot/shared/kafka"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// kafkaConnectTimeout bounds broker retries at startup
const kafkaConnectTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		log.WithError(err).Fatal("failed to set up logging")
	}
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build components")
	}
	defer deps.Close()

	// Commands keep running through shutdown until the grace period ends
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var dispatcher *kafka.Dispatcher
	var consumer *kafka.Consumer
	var producer *kafka.Producer
	if cfg.Kafka.Enabled() {
		dispatcher, consumer, producer, err = startKafka(ctx, workCtx, cfg.Kafka, cfg.Server, deps, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to start kafka transport")
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewRouter(api.Deps{Commands: deps.Router, Metrics: deps.Metrics.Handler(), Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(log.Fields{
			"addr":  srv.Addr,
			"kafka": cfg.Kafka.Enabled(),
		}).Info("starting API server")
		logger.Info("API endpoints available: POST /api/commands, GET /api/health, GET /metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer cancel()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka consumer")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server forced to shutdown")
	}

	if dispatcher != nil {
		drained := make(chan struct{})
		go func() {
			dispatcher.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			logger.Warn("grace period over; abandoning in-flight commands")
			cancelWork()
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}

	logger.Info("server exited")
}

func startKafka(ctx, workCtx context.Context, kc config.KafkaConfig, sc config.ServerConfig, deps *app.App, logger log.Interface) (*kafka.Dispatcher, *kafka.Consumer, *kafka.Producer, error) {
	logger = logger.WithField("component", "kafka")

	producer, err := kafka.ConnectWithRetry("producer", kafkaConnectTimeout, logger, func() (*kafka.Producer, error) {
		return kafka.NewProducer(kc.Brokers, kc.ReplyTopic)
	})
	if err != nil {
		return nil, nil, nil, err
	}

	dispatcher := kafka.NewDispatcher(workCtx, deps.Router, producer, sc.MaxConcurrentCommands, logger)
	consumer, err := kafka.ConnectWithRetry("consumer", kafkaConnectTimeout, logger, func() (*kafka.Consumer, error) {
		return kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: kc.Brokers,
			Topic:   kc.CommandTopic,
			GroupID: kc.GroupID,
			Handler: dispatcher.Handler(),
			Logger:  logger,
		})
	})
	if err != nil {
		_ = producer.Close()
		return nil, nil, nil, err
	}

	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		_ = producer.Close()
		return nil, nil, nil, err
	}
	return dispatcher, consumer, producer, nil
}
