package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/nobet/config"
	"github.com/alejandrodnm/nobet/internal/adapters/notify"
	"github.com/alejandrodnm/nobet/internal/adapters/polymarket"
	"github.com/alejandrodnm/nobet/internal/adapters/storage"
	"github.com/alejandrodnm/nobet/internal/application/scanner"
	"github.com/alejandrodnm/nobet/internal/ports"
)

const usage = `usage: nobet [flags] <command>

commands:
  scan                     list candidates without trading
  trade                    run one scan → gate → execute pass
  status                   show daily spend and open positions
  balance                  show POL and USDC.e balances
  withdraw <dest> [amount] send USDC.e to dest (default: whole balance)
  approve                  set exchange allowances for trading

flags:
`

// app agrupa lo que comparten todos los subcomandos.
type app struct {
	cfg      *config.Config
	dryRun   bool
	console  *notify.Console
	notifier ports.Notifier
	now      func() time.Time
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print tables instead of plain text")
	forceDry := flag.Bool("dry-run", false, "simulate orders (overrides config)")
	forceLive := flag.Bool("live", false, "place real orders (overrides config)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if *forceDry && *forceLive {
		fmt.Fprintln(os.Stderr, "-dry-run and -live are mutually exclusive")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	dryRun := cfg.IsDryRun()
	switch {
	case *forceDry:
		dryRun = true
	case *forceLive:
		dryRun = false
	}

	loc := cfg.Location()
	a := &app{
		cfg:      cfg,
		dryRun:   dryRun,
		console:  notify.NewConsole(*table),
		notifier: newNotifier(cfg.Notify),
		now:      func() time.Time { return time.Now().In(loc) },
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	slog.Debug("nobet starting", "command", cmd, "dry_run", dryRun, "config", cfg.Redacted())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "scan":
		err = a.scan(ctx)
	case "trade":
		err = a.trade(ctx)
	case "status":
		err = a.status(ctx)
	case "balance":
		err = a.balance(ctx)
	case "withdraw":
		err = a.withdraw(ctx, args)
	case "approve":
		err = a.approve(ctx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

// newNotifier registra solo los canales configurados.
func newNotifier(cfg config.NotifyConfig) *notify.Notifier {
	var senders []notify.Sender
	if tg := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID); tg != nil {
		senders = append(senders, tg)
	}
	if dc := notify.NewDiscord(cfg.DiscordWebhookURL); dc != nil {
		senders = append(senders, dc)
	}
	return notify.NewNotifier(senders...)
}

func (a *app) client() *polymarket.Client {
	return polymarket.NewClient(a.cfg.API.CLOBBase, a.cfg.API.GammaBase, a.cfg.API.Timeout.Duration())
}

func (a *app) scanner(client *polymarket.Client) (*scanner.Scanner, error) {
	s, err := scanner.New(scanner.Config{
		FeedLimit:  a.cfg.Feed.Limit,
		SortKey:    a.cfg.Feed.SortKey,
		Descending: *a.cfg.Feed.Descending,
		Filter: scanner.FilterConfig{
			MinYesProb:          a.cfg.Filter.MinYesProb,
			MaxNoPrice:          *a.cfg.Filter.MaxNoPrice,
			MinVolume:           *a.cfg.Filter.MinVolume,
			MaxDaysToResolution: a.cfg.Filter.MaxDaysToResolution,
			Keywords:            a.cfg.Filter.Keywords,
		},
	}, client)
	if err != nil {
		return nil, err
	}
	return s.WithClock(a.now), nil
}

func (a *app) openStore() (ports.StateStore, error) {
	s, err := storage.Open(a.cfg.Storage.Driver, a.cfg.Storage.Dir, a.cfg.Storage.DSN, a.cfg.Trading.RetentionDays)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return s, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
