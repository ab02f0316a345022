package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stove_control/internal/broadcast"
	"stove_control/internal/handlers"
	"stove_control/internal/hardware"
	"stove_control/internal/logger"
	"stove_control/internal/metrics"
	"stove_control/internal/repository"
	"stove_control/internal/repository/db"
	"stove_control/internal/server"
	"stove_control/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfgErr := loadConfig()
	log := logger.Get(viper.GetString("log.level"))
	if cfgErr != nil {
		log.Fatalw("error reading config", "err", cfgErr)
	}

	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	httpClient := &http.Client{}
	gateway := hardware.NewGateway(hardware.Config{
		BaseURL:      viper.GetString("hardware.base_url"),
		Token:        viper.GetString("hardware.token"),
		SendTimeout:  viper.GetDuration("hardware.send_timeout"),
		ReadTimeout:  viper.GetDuration("hardware.read_timeout"),
		ProbeTimeout: viper.GetDuration("hardware.probe_timeout"),
	}, httpClient, log, m)

	cfg := service.Config{
		Channels: service.Channels{
			Valve:   viper.GetString("hardware.valve_channel"),
			Status:  viper.GetString("hardware.status_channel"),
			Command: viper.GetString("hardware.command_channel"),
			Gas:     viper.GetString("hardware.gas_channel"),
		},
		GasThreshold:    viper.GetInt("safety.gas_threshold"),
		GasPollInterval: viper.GetDuration("safety.gas_poll_interval"),
		ResetCooldown:   viper.GetDuration("safety.reset_cooldown"),
		SigningKey:      viper.GetString("auth.signing_key"),
		TokenTTL:        viper.GetDuration("auth.token_ttl"),
	}.WithDefaults()

	voice := hardware.NewVoiceTrigger(hardware.VoiceConfig{
		URL:        viper.GetString("hardware.voice_url"),
		Token:      viper.GetString("hardware.voice_token"),
		RatePerSec: viper.GetFloat64("voice.rate_per_sec"),
		Burst:      viper.GetInt("voice.burst"),
	}, httpClient, gateway, cfg.Channels.Command, log)

	services := service.NewService(service.Deps{
		Config:  cfg,
		Gateway: gateway,
		Voice:   voice,
		Hub:     broadcast.NewHub(),
		Repos:   repository.NewRepository(sqlDB),
		Metrics: m,
		Log:     log,
	})
	gateway.OnConnectivityChange(services.HardwareChanged)

	if cfg.SigningKey == "" {
		log.Warnw("auth.signing_key is empty; operator endpoints will reject every token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !gateway.Connect(ctx) {
		log.Warnw("device bridge not reachable at startup; probing in background")
	}

	srv := server.New(viper.GetString("port"), handlers.NewHandler(services, reg, log).InitRoutes())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services.Monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		gateway.RunProbe(gctx, viper.GetDuration("hardware.probe_interval"))
		return nil
	})
	g.Go(func() error {
		log.Infow("http server listening", "addr", srv.Addr())
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("stove controller stopped with error", "err", err)
		return
	}
	log.Infow("stove controller stopped")
}

func loadConfig() error {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("db.path", "stove.db")
	viper.SetDefault("auth.token_ttl", time.Hour)
	viper.SetDefault("hardware.send_timeout", hardware.DefaultSendTimeout)
	viper.SetDefault("hardware.read_timeout", hardware.DefaultReadTimeout)
	viper.SetDefault("hardware.probe_timeout", hardware.DefaultProbeTimeout)
	viper.SetDefault("hardware.probe_interval", hardware.DefaultProbeInterval)
	viper.SetDefault("safety.gas_threshold", service.DefaultGasThreshold)
	viper.SetDefault("safety.gas_poll_interval", service.DefaultGasPollInterval)
	viper.SetDefault("safety.reset_cooldown", service.DefaultResetCooldown)

	viper.SetEnvPrefix("STOVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func openDB(log *logger.Logger) (*sql.DB, error) {
	path := viper.GetString("db.path")
	log.Infow("opening safety journal", "path", path)
	return db.InitDB(path)
}
