package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"copytrade-bot/config"
	"copytrade-bot/internal/api"
	"copytrade-bot/internal/bot"
	"copytrade-bot/internal/events"
	"copytrade-bot/internal/exchange"
	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/logging"
	"copytrade-bot/internal/notification"
	sig "copytrade-bot/internal/signal"
)

func main() {
	var (
		configPath     = flag.String("config", "config.json", "path to the config file")
		agentID        = flag.String("agent", "", "agent id to mirror (overrides config)")
		intervalSec    = flag.Int("interval", 0, "poll interval in seconds (overrides config)")
		totalMargin    = flag.Float64("total-margin", 0, "proportional allocation budget (overrides config)")
		fixedAmount    = flag.Float64("fixed-amount", 0, "fixed margin per coin (overrides config)")
		maxTotalMargin = flag.Float64("max-total-margin", 0, "cap for the fixed policy (overrides config)")
		profitTarget   = flag.Float64("profit-target", -1, "profit target percent for re-follow (overrides config)")
		autoRefollow   = flag.Bool("auto-refollow", false, "re-arm symbols after exits")
		priceTolerance = flag.Float64("price-tolerance", -1, "max adverse price drift percent (overrides config)")
		dryRun         = flag.Bool("dry-run", false, "log orders without placing them")
		exchangeName   = flag.String("exchange", "", "exchange backend: binance or mock (overrides config)")
		marginType     = flag.String("margin-type", "", "margin mode: CROSSED or ISOLATED (overrides config)")
	)
	flag.Parse()

	if *totalMargin > 0 && *fixedAmount > 0 {
		fmt.Fprintln(os.Stderr, "-total-margin and -fixed-amount are mutually exclusive")
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *agentID, *intervalSec, *totalMargin, *fixedAmount, *maxTotalMargin, *profitTarget, *autoRefollow, *priceTolerance, *dryRun, *exchangeName, *marginType)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	eventBus := events.NewEventBus()

	notifyManager := notification.NewManager()
	if cfg.NotificationConfig.Enabled {
		if cfg.NotificationConfig.Telegram.Enabled {
			notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  true,
			}))
			logger.Info().Msg("Telegram notifications enabled")
		}
		if cfg.NotificationConfig.Discord.Enabled {
			notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    true,
			}))
			logger.Info().Msg("Discord notifications enabled")
		}
	}

	exch, err := exchange.New(exchange.FactoryConfig{
		Exchange:  cfg.ExchangeConfig.Exchange,
		APIKey:    cfg.ExchangeConfig.APIKey,
		SecretKey: cfg.ExchangeConfig.SecretKey,
		TestNet:   cfg.ExchangeConfig.TestNet,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise exchange client")
	}
	logger.Info().
		Str("exchange", cfg.ExchangeConfig.Exchange).
		Bool("testnet", cfg.ExchangeConfig.TestNet).
		Msg("Exchange client initialised")

	store := ledger.NewFileStore(cfg.LedgerConfig.Path, logger)
	signalClient := sig.NewClient(sig.Config{
		BaseURL: cfg.SignalConfig.BaseURL,
		Timeout: cfg.SignalTimeout(),
	})

	engine := bot.NewEngine(cfg, exch, signalClient, store, eventBus, notifyManager, logger)
	if err := engine.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start engine")
	}

	var statusServer *api.Server
	if cfg.ServerConfig.Enabled {
		statusServer = api.NewServer(cfg.ServerConfig, engine, exch, store, logger)
		statusServer.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Error shutting down status server")
		}
	}
	engine.Stop()
	logger.Info().Msg("Shutdown complete")
}

// applyFlagOverrides merges CLI flags into the loaded config. Flags beat the
// file and the environment; zero values (or -1 for percentages, where 0 is
// meaningful) leave the config untouched.
func applyFlagOverrides(cfg *config.Config, agentID string, intervalSec int, totalMargin, fixedAmount, maxTotalMargin, profitTarget float64, autoRefollow bool, priceTolerance float64, dryRun bool, exchangeName, marginType string) {
	if agentID != "" {
		cfg.SignalConfig.AgentID = agentID
	}
	if intervalSec > 0 {
		cfg.SignalConfig.PollIntervalSec = intervalSec
	}
	if totalMargin > 0 {
		cfg.CapitalConfig.TotalMargin = totalMargin
		cfg.CapitalConfig.FixedAmountPerCoin = 0
	}
	if fixedAmount > 0 {
		cfg.CapitalConfig.FixedAmountPerCoin = fixedAmount
		cfg.CapitalConfig.TotalMargin = 0
	}
	if maxTotalMargin > 0 {
		cfg.CapitalConfig.MaxTotalMargin = maxTotalMargin
	}
	if profitTarget >= 0 {
		cfg.FollowConfig.ProfitTargetPct = profitTarget
	}
	if autoRefollow {
		cfg.FollowConfig.AutoRefollow = true
	}
	if priceTolerance >= 0 {
		cfg.FollowConfig.PriceTolerancePct = priceTolerance
	}
	if dryRun {
		cfg.FollowConfig.DryRun = true
	}
	if exchangeName != "" {
		cfg.ExchangeConfig.Exchange = exchangeName
	}
	if marginType != "" {
		cfg.ExchangeConfig.MarginType = strings.ToUpper(marginType)
	}
}
