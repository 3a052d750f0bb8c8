package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"keycast.pinglu.dev/internal/config"
	"keycast.pinglu.dev/internal/dispatch"
	"keycast.pinglu.dev/internal/keys"
	"keycast.pinglu.dev/internal/sender"
	"keycast.pinglu.dev/internal/targets"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Error loading config: %v", err)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []targets.Option
	if cfg.MDNS {
		opts = append(opts, targets.WithMDNS(ctx, targets.MDNSBrowser{}, cfg.MDNSService, cfg.MDNSTimeout()))
	}
	resolved := targets.Resolve(cfg.Target, cfg.Port, opts...)

	fmt.Printf("Mode: %s\n", resolved.Mode)
	fmt.Printf("Targets: %s\n", strings.Join(resolved.Hosts(), ", "))
	fmt.Printf("Port: %d\n", cfg.Port)
	fmt.Printf("Controls: press 1-8 to send that index (0-7). Press 'q' to quit.\n")
	fmt.Printf("Note: When idle, %s %d is sent every %dms.\n", cfg.Address, dispatch.IDLE, cfg.TickMs)

	conn, err := sender.New()
	if err != nil {
		log.Fatalf("Error opening socket: %v", err)
	}
	defer conn.Close()

	src, err := openKeys(cfg)
	if err != nil {
		conn.Close()
		log.Fatalf("Error opening key input: %v", err)
	}
	defer src.Close()

	loop := &dispatch.Loop{
		Keys:    src,
		Conn:    conn,
		Targets: resolved.Targets,
		Address: cfg.Address,
		Tick:    cfg.Tick(),
		Out:     os.Stdout,
	}

	err = loop.Run(ctx)

	stats := loop.Stats()
	slog.Debug("keycast: loop finished", "ticks", stats.Ticks, "sent", stats.Sent, "failed", stats.Failed)
	fmt.Println("Stopped.")

	if err != nil {
		log.Printf("ERROR: %s\n", err.Error())
		stop()
		conn.Close()
		os.Exit(1)
	}
}

func openKeys(cfg *config.Config) (keys.Source, error) {
	if cfg.Script != "" {
		return keys.ParseScript(cfg.Script), nil
	}
	return keys.Open()
}
