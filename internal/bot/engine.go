// Package bot runs the polling loop that mirrors a remote agent's futures
// positions onto the configured exchange account.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"copytrade-bot/config"
	"copytrade-bot/internal/allocation"
	"copytrade-bot/internal/circuit"
	"copytrade-bot/internal/events"
	"copytrade-bot/internal/exchange"
	"copytrade-bot/internal/ledger"
	"copytrade-bot/internal/logging"
	"copytrade-bot/internal/notification"
	"copytrade-bot/internal/orders"
	"copytrade-bot/internal/reconcile"
	"copytrade-bot/internal/refollow"
	"copytrade-bot/internal/risk"
	"copytrade-bot/internal/signal"
)

// SignalSource abstracts the remote agent position feed.
type SignalSource interface {
	AgentPositions(ctx context.Context, agentID string) ([]signal.Position, error)
}

// CycleStats summarises the most recent polling cycle for the status API.
type CycleStats struct {
	StartedAt          time.Time     `json:"started_at"`
	Duration           time.Duration `json:"duration"`
	SignalPositions    int           `json:"signal_positions"`
	NewPositions       int           `json:"new_positions"`
	OrdersPlaced       int           `json:"orders_placed"`
	OrdersSkipped      int           `json:"orders_skipped"`
	OrdersFailed       int           `json:"orders_failed"`
	AgentClosed        int           `json:"agent_closed"`
	ManualClosed       int           `json:"manual_closed"`
	ManualCheckSkipped bool          `json:"manual_check_skipped"`
	Warning            string        `json:"warning,omitempty"`
	Error              string        `json:"error,omitempty"`
}

// Engine coordinates one polling cycle at a time: fetch the agent snapshot,
// reconcile against the ledger and broker, mirror new positions, persist.
type Engine struct {
	cfg        *config.Config
	exchange   exchange.Client
	signals    SignalSource
	store      *ledger.FileStore
	reconciler *reconcile.Reconciler
	refollow   *refollow.Controller
	riskMgr    *risk.Manager
	breaker    *circuit.Breaker
	bus        *events.EventBus
	notifier   *notification.Manager
	orderIDs   *orders.Generator
	logger     zerolog.Logger

	// lastSeen holds the previous cycle's live signal snapshot per symbol.
	// It backs the profit-target check when the agent drops a position.
	lastSeen map[string]signal.Position

	cycleMu   sync.Mutex // one cycle at a time; overlapping ticks are skipped
	statusMu  sync.RWMutex
	lastCycle CycleStats
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewEngine wires the engine from config and its collaborators.
func NewEngine(cfg *config.Config, exch exchange.Client, signals SignalSource, store *ledger.FileStore, bus *events.EventBus, notifier *notification.Manager, logger zerolog.Logger) *Engine {
	e := &Engine{
		cfg:      cfg,
		exchange: exch,
		signals:  signals,
		store:    store,
		reconciler: reconcile.NewReconciler(
			cfg.FollowConfig.DetectManualClose,
			exch.ConvertSymbol,
			logger,
		),
		refollow: refollow.NewController(
			cfg.FollowConfig.ProfitTargetPct,
			cfg.FollowConfig.AutoRefollow,
			logger,
		),
		riskMgr: risk.NewManager(&risk.ManagerConfig{
			MaxOpenPositions: cfg.FollowConfig.MaxOpenPositions,
			MinFreeBalance:   cfg.FollowConfig.MinFreeBalance,
		}),
		breaker: circuit.NewBreaker(&circuit.Config{
			Enabled:                cfg.CircuitBreakerConfig.Enabled,
			MaxConsecutiveFailures: cfg.CircuitBreakerConfig.MaxConsecutiveFailures,
			Cooldown:               time.Duration(cfg.CircuitBreakerConfig.CooldownMinutes) * time.Minute,
			MaxOrdersPerMinute:     cfg.CircuitBreakerConfig.MaxOrdersPerMinute,
		}),
		bus:      bus,
		notifier: notifier,
		orderIDs: orders.NewGenerator(nil),
		logger:   logging.Component(logger, "Engine"),
		lastSeen: make(map[string]signal.Position),
		stopChan: make(chan struct{}),
	}

	e.breaker.OnTrip(func(reason string) {
		e.logger.Error().Str("reason", reason).Msg("Circuit breaker tripped, order execution halted")
		e.bus.Publish(events.Event{
			Type: events.EventCircuitTripped,
			Data: map[string]interface{}{"reason": reason},
		})
		if err := e.notifier.SendCircuitTripped(reason); err != nil {
			e.logger.Warn().Err(err).Msg("Failed to send circuit breaker notification")
		}
	})
	e.breaker.OnReset(func() {
		e.logger.Info().Msg("Circuit breaker closed, order execution resumed")
	})

	return e
}

// Start launches the polling loop. The first cycle runs immediately.
func (e *Engine) Start() error {
	e.statusMu.Lock()
	if e.running {
		e.statusMu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.statusMu.Unlock()

	e.logger.Info().
		Str("agent_id", e.cfg.SignalConfig.AgentID).
		Dur("poll_interval", e.cfg.PollInterval()).
		Bool("dry_run", e.cfg.FollowConfig.DryRun).
		Msg("Copy-trade engine started")
	e.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"agent_id": e.cfg.SignalConfig.AgentID,
	}})

	e.wg.Add(1)
	go e.run()
	return nil
}

// Stop halts the polling loop and waits for an in-flight cycle to finish.
func (e *Engine) Stop() {
	e.statusMu.Lock()
	if !e.running {
		e.statusMu.Unlock()
		return
	}
	e.running = false
	e.statusMu.Unlock()

	close(e.stopChan)
	e.wg.Wait()
	e.bus.Publish(events.Event{Type: events.EventBotStopped, Data: nil})
	e.logger.Info().Msg("Copy-trade engine stopped")
}

func (e *Engine) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	e.runCycleWithTimeout()
	for {
		select {
		case <-ticker.C:
			e.runCycleWithTimeout()
		case <-e.stopChan:
			return
		}
	}
}

func (e *Engine) runCycleWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PollInterval())
	defer cancel()
	if err := e.RunCycle(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Polling cycle failed")
	}
}

// LastCycle returns the most recent cycle summary.
func (e *Engine) LastCycle() CycleStats {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.lastCycle
}

// IsRunning reports whether the polling loop is active.
func (e *Engine) IsRunning() bool {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.running
}

// CircuitState returns the execution circuit breaker state.
func (e *Engine) CircuitState() circuit.BreakerState {
	return e.breaker.GetState()
}

// CircuitStats returns circuit breaker statistics for the status API.
func (e *Engine) CircuitStats() map[string]interface{} {
	return e.breaker.GetStats()
}

// RunCycle executes one polling cycle. If a cycle is already in flight the
// call is a no-op; cycles never overlap. A signal-source failure aborts the
// cycle before any ledger mutation.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.cycleMu.TryLock() {
		e.logger.Warn().Msg("Previous cycle still running, skipping this tick")
		return nil
	}
	defer e.cycleMu.Unlock()

	stats := CycleStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		e.statusMu.Lock()
		e.lastCycle = stats
		e.statusMu.Unlock()
		e.bus.PublishCycleCompleted(stats.NewPositions, stats.AgentClosed, stats.ManualClosed, stats.Duration)
	}()

	positions, err := e.signals.AgentPositions(ctx, e.cfg.SignalConfig.AgentID)
	if err != nil {
		stats.Error = err.Error()
		e.bus.PublishError("signal", err)
		return fmt.Errorf("failed to fetch agent positions: %w", err)
	}
	stats.SignalPositions = len(positions)

	led := e.store.Load()

	var broker []exchange.Position
	brokerOK := false
	// Dry-run places no orders, so ledger entries have no broker counterpart
	// and the comparison would flag every one of them as a manual close.
	if e.cfg.FollowConfig.DetectManualClose && !e.cfg.FollowConfig.DryRun {
		broker, err = e.exchange.GetAllPositions(ctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Broker position query failed, manual-close check skipped this cycle")
		} else {
			brokerOK = true
		}
	}

	res := e.reconciler.Classify(positions, led, broker, brokerOK)
	stats.NewPositions = len(res.NewPositions)
	stats.AgentClosed = len(res.AgentClosed)
	stats.ManualClosed = len(res.ManualClosed)
	stats.ManualCheckSkipped = res.ManualCheckSkipped

	dirty := false

	for _, ev := range res.AgentClosed {
		e.bus.PublishAgentClosed(ev.Symbol, ev.EntryOrderID)
		out := e.refollow.HandleAgentClosed(led, ev, e.lastSeenPosition(ev.Symbol))
		if out.Recorded {
			dirty = true
			e.bus.PublishProfitExit(out.Symbol, out.EntryOrderID, out.ProfitPct, out.Reset)
			if err := e.notifier.SendAgentClose(out.Symbol, out.EntryOrderID, out.ProfitPct); err != nil {
				e.logger.Warn().Err(err).Msg("Failed to send agent-close notification")
			}
		}
	}

	for _, ev := range res.ManualClosed {
		out := e.refollow.HandleManualClosed(led, ev)
		if out.Recorded {
			dirty = true
			e.bus.PublishManualClosed(out.Symbol, out.EntryOrderID, out.Reset)
			if err := e.notifier.SendManualClose(out.Symbol, out.EntryOrderID, out.Reset); err != nil {
				e.logger.Warn().Err(err).Msg("Failed to send manual-close notification")
			}
		}
	}

	var mirrorErr error
	if len(res.NewPositions) > 0 {
		mirrorErr = e.mirrorNewPositions(ctx, led, res.NewPositions, &stats, &dirty)
	}

	if dirty {
		if err := e.store.Save(led); err != nil {
			stats.Error = err.Error()
			e.bus.PublishError("ledger", err)
			return fmt.Errorf("failed to persist ledger: %w", err)
		}
	}

	e.rememberSnapshot(positions)

	if mirrorErr != nil {
		stats.Error = mirrorErr.Error()
		e.bus.PublishError("execution", mirrorErr)
		return mirrorErr
	}

	e.logger.Info().
		Int("signal_positions", stats.SignalPositions).
		Int("new", stats.NewPositions).
		Int("placed", stats.OrdersPlaced).
		Int("skipped", stats.OrdersSkipped).
		Int("agent_closed", stats.AgentClosed).
		Int("manual_closed", stats.ManualClosed).
		Msg("Cycle completed")
	return nil
}

// mirrorNewPositions allocates capital across the new positions and places
// one market order per funded allocation. Risk-gate skips and individual
// order failures do not abort the cycle; an account or policy failure does.
func (e *Engine) mirrorNewPositions(ctx context.Context, led *ledger.Ledger, newPositions []signal.Position, stats *CycleStats, dirty *bool) error {
	account, err := e.exchange.GetAccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account info: %w", err)
	}
	e.riskMgr.UpdateAccountBalance(account.AvailableBalance)

	policy, err := allocation.NewPolicy(
		e.cfg.CapitalConfig.TotalMargin,
		e.cfg.CapitalConfig.FixedAmountPerCoin,
		e.cfg.CapitalConfig.MaxTotalMargin,
		account.AvailableBalance,
	)
	if err != nil {
		return fmt.Errorf("invalid capital policy: %w", err)
	}

	result := allocation.NewAllocator(policy, e.logger).Allocate(newPositions)
	if result.Warning != "" {
		stats.Warning = result.Warning
		e.logger.Warn().Str("warning", result.Warning).Msg("Allocation degraded")
	}

	bySymbol := make(map[string]signal.Position, len(newPositions))
	for _, pos := range newPositions {
		bySymbol[pos.Symbol] = pos
	}

	for _, al := range result.Allocations {
		sig := bySymbol[al.Symbol]
		if e.executeAllocation(ctx, led, sig, al, stats) {
			*dirty = true
		}
	}
	return nil
}

// executeAllocation runs the per-order gates and places the mirror order.
// Returns true when the ledger was mutated.
func (e *Engine) executeAllocation(ctx context.Context, led *ledger.Ledger, sig signal.Position, al allocation.Allocation, stats *CycleStats) bool {
	e.bus.PublishPositionDetected(sig.Symbol, al.Side, sig.EntryOrderID, sig.Margin, sig.Leverage)

	if ok, reason := e.riskMgr.CanOpenPosition(); !ok {
		e.skipOrder(sig.Symbol, reason, stats)
		return false
	}
	if ok, reason := e.breaker.Allow(); !ok {
		e.skipOrder(sig.Symbol, reason, stats)
		return false
	}

	exSymbol := e.exchange.ConvertSymbol(sig.Symbol)

	markPrice, err := e.exchange.GetMarkPrice(ctx, exSymbol)
	if err != nil {
		e.logger.Warn().Err(err).Str("symbol", exSymbol).Msg("Mark price unavailable, using signal price for tolerance check")
		markPrice = sig.CurrentPrice
	}

	verdict, err := risk.Evaluate(sig.EntryPrice, markPrice, al.Side, e.cfg.FollowConfig.PriceTolerancePct, al.Leverage)
	if err != nil {
		e.skipOrder(sig.Symbol, fmt.Sprintf("tolerance check failed: %v", err), stats)
		return false
	}
	if !verdict.Execute {
		e.skipOrder(sig.Symbol, verdict.Reason, stats)
		return false
	}

	if e.cfg.FollowConfig.DryRun {
		e.logger.Info().
			Str("symbol", exSymbol).
			Str("side", al.Side).
			Float64("quantity", al.AdjustedQuantity).
			Float64("margin", al.AllocatedMargin).
			Msg("Dry run: order not placed, position recorded as processed")
		e.recordProcessed(led, sig, al.AdjustedQuantity)
		stats.OrdersPlaced++
		return true
	}

	if sig.Leverage > 0 {
		if err := e.exchange.SetLeverage(ctx, exSymbol, sig.Leverage); err != nil {
			e.logger.Error().Err(err).Str("symbol", exSymbol).Int("leverage", sig.Leverage).Msg("Failed to set leverage, order not placed")
			e.breaker.RecordFailure()
			e.bus.PublishOrderFailed(sig.Symbol, al.Side, err)
			stats.OrdersFailed++
			return false
		}
	}
	marginType := exchange.MarginType(e.cfg.ExchangeConfig.MarginType)
	if marginType != "" {
		if err := e.exchange.SetMarginType(ctx, exSymbol, marginType); err != nil {
			e.logger.Warn().Err(err).Str("symbol", exSymbol).Msg("Failed to set margin type, proceeding with current mode")
		}
	}

	clientID, _, err := e.orderIDs.Generate(orders.OrderTypeEntry)
	if err != nil {
		e.skipOrder(sig.Symbol, fmt.Sprintf("order id generation failed: %v", err), stats)
		return false
	}

	resp, err := e.exchange.PlaceOrder(ctx, exchange.OrderParams{
		Symbol:        exSymbol,
		Side:          exchange.Side(al.Side),
		Type:          exchange.OrderTypeMarket,
		Quantity:      al.AdjustedQuantity,
		ClientOrderID: clientID,
	})
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", exSymbol).Str("side", al.Side).Msg("Order placement failed")
		e.breaker.RecordFailure()
		e.bus.PublishOrderFailed(sig.Symbol, al.Side, err)
		stats.OrdersFailed++
		return false
	}

	e.breaker.RecordSuccess()
	e.riskMgr.RegisterPositionOpened()

	executedQty := resp.ExecutedQty
	if executedQty == 0 {
		executedQty = al.AdjustedQuantity
	}
	e.recordProcessed(led, sig, executedQty)

	fillPrice := resp.AvgPrice
	if fillPrice == 0 {
		fillPrice = markPrice
	}
	e.logger.Info().
		Str("symbol", exSymbol).
		Str("side", al.Side).
		Str("client_order_id", resp.ClientOrderID).
		Float64("quantity", executedQty).
		Float64("price", fillPrice).
		Float64("margin", al.AllocatedMargin).
		Msg("Mirror order placed")
	e.bus.PublishOrderPlaced(sig.Symbol, al.Side, resp.ClientOrderID, executedQty, al.AllocatedMargin)
	if err := e.notifier.SendMirrorOpen(sig.Symbol, al.Side, executedQty, al.AllocatedMargin, fillPrice, al.Leverage); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to send mirror-open notification")
	}
	stats.OrdersPlaced++
	return true
}

func (e *Engine) skipOrder(symbol, reason string, stats *CycleStats) {
	e.logger.Info().Str("symbol", symbol).Str("reason", reason).Msg("Order skipped")
	e.bus.PublishOrderSkipped(symbol, reason)
	if err := e.notifier.SendSkip(symbol, reason); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to send skip notification")
	}
	stats.OrdersSkipped++
}

func (e *Engine) recordProcessed(led *ledger.Ledger, sig signal.Position, executedQty float64) {
	led.RecordProcessed(ledger.ProcessedOrder{
		Symbol:       sig.Symbol,
		EntryOrderID: sig.EntryOrderID,
		Side:         sig.Side(),
		ExecutedQty:  executedQty,
	})
}

func (e *Engine) lastSeenPosition(symbol string) *signal.Position {
	if pos, ok := e.lastSeen[symbol]; ok {
		return &pos
	}
	return nil
}

func (e *Engine) rememberSnapshot(positions []signal.Position) {
	snapshot := make(map[string]signal.Position, len(positions))
	for _, pos := range positions {
		if pos.Live() {
			snapshot[pos.Symbol] = pos
		}
	}
	e.lastSeen = snapshot
}
