package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blksocks/blksocks/internal/config"
	"github.com/blksocks/blksocks/internal/dialer"
	"github.com/blksocks/blksocks/internal/logging"
	"github.com/blksocks/blksocks/internal/proxy"
	"github.com/blksocks/blksocks/internal/stats"
	"github.com/blksocks/blksocks/internal/tproxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = pflag.String("config", config.DefaultPath, "Path to the TOML configuration file")
		listen       = pflag.String("listen", "", "Override network.listen from the configuration file")
		socksAddr    = pflag.String("socks5", "", "Override network.socks5 from the configuration file")
		dialTimeout  = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for the TCP connect to the upstream proxy")
		tcpKeepAlive = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose      = pflag.Bool("verbose", false, "Log at debug level")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if !tproxy.IsSupported {
		return errors.New("transparent proxy is not supported on this platform")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Network.Listen = *listen
	}
	if *socksAddr != "" {
		cfg.Network.SOCKS5 = *socksAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	workers, fromEnv := config.WorkerThreads()
	runtime.GOMAXPROCS(workers)

	log := logging.New(cfg.Logging, *verbose)
	defer func() { _ = log.Sync() }()

	upstream, err := config.ResolveUpstream(cfg.Network.SOCKS5)
	if err != nil {
		return fmt.Errorf("resolve upstream %s: %w", cfg.Network.SOCKS5, err)
	}

	resolver, err := tproxy.NewResolver(cfg.Network.RedirectMode)
	if err != nil {
		return err
	}

	ln, err := tproxy.ListenTransparentTCP(cfg.Network.Listen, ka)
	if err != nil {
		return fmt.Errorf("tproxy listen: %w", err)
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := stats.NewTracker()
	g.Go(func() error {
		dumpStatsOnSignal(ctx, tracker, log)
		return nil
	})

	srv := proxy.NewServer(ctx, proxy.Config{
		Upstream: upstream,
		Dialer:   dialer.NewDirect(dialer.Config{DialTimeout: *dialTimeout, KeepAlive: ka}),
		Resolver: resolver,
		Stats:    tracker,
	}, log)

	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		return srv.Serve(ln)
	})

	log.Info("server started", zap.String("listen", cfg.Network.Listen))
	log.Info("using proxy", zap.String("socks5", upstream))
	if fromEnv {
		log.Info("worker pool size from environment", zap.Int("threads", workers))
	}

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	log.Info("shutting down")
	return err
}

// dumpStatsOnSignal logs the busiest destinations every time the process
// receives SIGUSR1, until ctx ends.
func dumpStatsOnSignal(ctx context.Context, tracker *stats.Tracker, log *zap.Logger) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			tracker.LogTop(log)
		}
	}
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
