// Command usrlserver runs the bus façade as a long-lived daemon, optionally
// relaying one topic to a remote peer over TCP, with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vedarsh/usrl-core/internal/config"
	"github.com/vedarsh/usrl-core/internal/metrics"
	"github.com/vedarsh/usrl-core/internal/transport"
	"github.com/vedarsh/usrl-core/pkg/bus"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the daemon's own startup options, separate from the bus's
// YAML topic configuration.
type Config struct {
	BusConfigPath string
	RelayTopic    string
	RelayListen   string
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.BusConfigPath, "config", "", "path to the bus YAML config (required)")
	flag.StringVar(&cfg.RelayTopic, "relay-topic", "", "topic to relay to accepted TCP peers (optional)")
	flag.StringVar(&cfg.RelayListen, "relay-listen", "", "address to accept relay peers on, e.g. :9443 (required if relay-topic is set)")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	if cfg.BusConfigPath == "" {
		fmt.Fprintln(os.Stderr, "usrlserver: -config is required")
		os.Exit(1)
	}
	if cfg.RelayTopic != "" && cfg.RelayListen == "" {
		fmt.Fprintln(os.Stderr, "usrlserver: -relay-listen is required when -relay-topic is set")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "usrlserver: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Errorw("usrlserver exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg Config, log *zap.SugaredLogger) error {
	busCfg, err := config.Load(cfg.BusConfigPath)
	if err != nil {
		return fmt.Errorf("usrlserver: load config: %w", err)
	}

	b, err := bus.Open(busCfg)
	if err != nil {
		return fmt.Errorf("usrlserver: open bus: %w", err)
	}
	defer b.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	b.SetMetrics(collector)
	for name, health := range b.Health() {
		collector.SetWHead(name, health.WHead)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener net.Listener
	if cfg.RelayTopic != "" {
		listener, err = net.Listen("tcp", cfg.RelayListen)
		if err != nil {
			return fmt.Errorf("usrlserver: listen on %s: %w", cfg.RelayListen, err)
		}
		go acceptRelayPeers(ctx, listener, b, cfg.RelayTopic, log)
		log.Infow("relay listening", "topic", cfg.RelayTopic, "addr", cfg.RelayListen)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Infow("usrlserver started", "config", cfg.BusConfigPath)
	<-sigCh
	log.Info("shutdown signal received")

	cancel()
	if listener != nil {
		_ = listener.Close()
	}

	return nil
}

func acceptRelayPeers(ctx context.Context, listener net.Listener, b *bus.Bus, topicName string, log *zap.SugaredLogger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Warnw("relay accept failed", "error", err)
			return
		}

		go func() {
			defer conn.Close()
			if err := serveRelayPeer(ctx, conn, b, topicName); err != nil {
				log.Warnw("relay peer disconnected", "error", err)
			}
		}()
	}
}

func serveRelayPeer(ctx context.Context, conn net.Conn, b *bus.Bus, topicName string) error {
	r, topic, err := b.RegionAndTopic(topicName)
	if err != nil {
		return err
	}
	forwarder := transport.NewForwarder(r, topic, conn)
	go func() {
		<-ctx.Done()
		forwarder.Close()
	}()
	return forwarder.Run(time.Millisecond)
}
