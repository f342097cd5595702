// Package bot runs the trading decision loop: poll candles, compute
// indicators, decide, size-check, place, persist. One Bot owns one
// market's position state; candles are processed strictly in order and
// never concurrently.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto-trading-bot/config"
	"crypto-trading-bot/internal/database"
	"crypto-trading-bot/internal/engine"
	"crypto-trading-bot/internal/events"
	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/funds"
	"crypto-trading-bot/internal/indicator"
	"crypto-trading-bot/internal/journal"
	"crypto-trading-bot/internal/logging"
	"crypto-trading-bot/internal/notification"
	"crypto-trading-bot/internal/position"
)

// ErrNoActionableFunds means the account can neither buy (no quote)
// nor sell (no base) from its reconciled position; the bot refuses to
// start rather than loop forever issuing WAIT.
var ErrNoActionableFunds = errors.New("no actionable funds")

// RunState is the execution loop's lifecycle state.
type RunState string

const (
	StateInit        RunState = "INIT"
	StateReconciling RunState = "RECONCILING"
	StatePolling     RunState = "POLLING"
	StateProcessing  RunState = "PROCESSING"
	StateTerminated  RunState = "TERMINATED"
	StateFatal       RunState = "FATAL"
)

// PriceStream is an optional intra-candle price source, typically a
// websocket ticker subscription. LastPrice reports the cached price and
// whether it is fresh enough to trust.
type PriceStream interface {
	Start()
	Stop()
	LastPrice() (float64, bool)
}

// Options wires the bot's collaborators. Exchange and Config are
// required; everything else degrades gracefully when nil.
type Options struct {
	Config   *config.Config
	Exchange exchange.Exchange
	Ticker   PriceStream
	Store    *position.Store
	Journal  *journal.Journal
	Notifier *notification.Manager
	Events   *events.EventBus
	Repo     *database.Repository
	Logger   *logging.Logger
}

// Bot is the execution loop for a single market.
type Bot struct {
	cfg        *config.Config
	ex         exchange.Exchange
	ticker     PriceStream
	indicators *indicator.Engine
	guard      *funds.Guard
	store      *position.Store
	journal    *journal.Journal
	notifier   *notification.Manager
	eventBus   *events.EventBus
	repo       *database.Repository
	logger     *logging.Logger

	mu           sync.RWMutex
	state        *position.State
	runState     RunState
	lastPrice    float64
	lastDecision *DecisionInfo

	stopChan chan struct{}
	stopOnce sync.Once
}

// DecisionInfo is the last decision, kept for the status API.
type DecisionInfo struct {
	CandleTime time.Time `json:"candle_time"`
	Price      float64   `json:"price"`
	Action     string    `json:"action"`
	ChangePct  float64   `json:"change_pct"`
	Margin     float64   `json:"margin"`
	Reasons    []string  `json:"reasons"`
	DecidedAt  time.Time `json:"decided_at"`
}

// Status is the bot's externally visible state.
type Status struct {
	Market       string        `json:"market"`
	RunState     RunState      `json:"run_state"`
	Live         bool          `json:"live"`
	Simulation   bool          `json:"simulation"`
	LastPrice    float64       `json:"last_price"`
	LastAction   string        `json:"last_action"`
	LastBuyPrice float64       `json:"last_buy_price"`
	TrailingHigh float64       `json:"trailing_high"`
	BuyCount     int           `json:"buy_count"`
	SellCount    int           `json:"sell_count"`
	LastCandle   time.Time     `json:"last_candle"`
	LastDecision *DecisionInfo `json:"last_decision,omitempty"`
}

func New(opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notification.NewManager(false)
	}
	store := opts.Store
	if store == nil {
		store = position.NewMemoryStore(logger)
	}

	sig := opts.Config.SignalConfig
	return &Bot{
		cfg:    opts.Config,
		ex:     opts.Exchange,
		ticker: opts.Ticker,
		indicators: indicator.NewEngine(indicator.Options{
			EnableEMA:      sig.EnableEMA,
			EnableMACD:     sig.EnableMACD,
			EnableOBV:      sig.EnableOBV,
			EnableElderRay: sig.EnableElderRay,
		}),
		store:    store,
		journal:  opts.Journal,
		notifier: notifier,
		eventBus: opts.Events,
		repo:     opts.Repo,
		logger:   logger.WithComponent("bot"),
		runState: StateInit,
		stopChan: make(chan struct{}),
	}
}

// Run drives the loop until the context is cancelled, Stop is called,
// a simulation completes, or a fatal condition is hit. Fatal startup
// conditions (unknown market, no actionable funds, unresolvable
// reconciliation) are returned as errors.
func (b *Bot) Run(ctx context.Context) error {
	mkt := b.cfg.MarketConfig

	limits, err := b.ex.GetMarketLimits(ctx, mkt.Market)
	if err != nil {
		b.setRunState(StateFatal)
		return fmt.Errorf("market limits unavailable: %w", err)
	}
	b.guard = funds.NewGuard(*limits, b.cfg.TradingConfig.InsufficientLogOnly, b.logger)

	b.setRunState(StateReconciling)
	state, err := b.resumeOrReconcile(ctx)
	if err != nil {
		b.setRunState(StateFatal)
		return err
	}
	b.mu.Lock()
	b.state = state
	b.mu.Unlock()

	if err := b.checkActionableFunds(ctx); err != nil {
		b.setRunState(StateFatal)
		return err
	}

	if err := b.store.Save(ctx, state); err != nil {
		b.logger.Warn("Failed to persist reconciled state", "error", err)
	}

	b.logger.Info("Bot starting",
		"market", mkt.Market,
		"granularity", mkt.Granularity,
		"live", b.cfg.TradingConfig.Live,
		"simulation", b.cfg.TradingConfig.Simulation,
		"last_action", string(state.LastAction))
	if b.eventBus != nil {
		b.eventBus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
			"market": mkt.Market,
			"live":   b.cfg.TradingConfig.Live,
		}})
	}
	defer func() {
		if b.eventBus != nil {
			b.eventBus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]interface{}{
				"market": mkt.Market,
			}})
		}
	}()

	if b.cfg.TradingConfig.Simulation {
		return b.runSimulation(ctx)
	}
	return b.runLive(ctx)
}

// Stop asks the loop to exit after the current cycle.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() { close(b.stopChan) })
}

// Status returns a snapshot for operators and the HTTP API.
func (b *Bot) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Status{
		Market:     b.cfg.MarketConfig.Market,
		RunState:   b.runState,
		Live:       b.cfg.TradingConfig.Live,
		Simulation: b.cfg.TradingConfig.Simulation,
		LastPrice:  b.lastPrice,
	}
	if b.state != nil {
		s.LastAction = string(b.state.LastAction)
		s.LastBuyPrice = b.state.LastBuyPrice
		s.TrailingHigh = b.state.TrailingHigh
		s.BuyCount = b.state.BuyCount
		s.SellCount = b.state.SellCount
		s.LastCandle = b.state.LastCandle
	}
	if b.lastDecision != nil {
		d := *b.lastDecision
		s.LastDecision = &d
	}
	return s
}

// State returns a copy of the current position state.
func (b *Bot) State() position.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == nil {
		return position.State{}
	}
	return *b.state
}

func (b *Bot) setRunState(rs RunState) {
	b.mu.Lock()
	b.runState = rs
	b.mu.Unlock()
}

// resumeOrReconcile prefers crash-safe persisted state; with nothing
// persisted it derives the starting state from the exchange.
func (b *Bot) resumeOrReconcile(ctx context.Context) (*position.State, error) {
	mkt := b.cfg.MarketConfig

	if stored, err := b.store.Load(ctx, mkt.Market); err != nil {
		b.logger.Warn("Failed to load persisted state", "error", err)
	} else if stored != nil && b.cfg.TradingConfig.LastActionOverride == "" {
		b.logger.Info("Resuming persisted position state",
			"market", mkt.Market,
			"last_action", string(stored.LastAction),
			"last_candle", stored.LastCandle)
		return stored, nil
	}

	rec := position.NewReconciler(b.ex, b.guard, position.ReconcilerOptions{
		Market:             mkt.Market,
		BaseCurrency:       mkt.BaseCurrency,
		QuoteCurrency:      mkt.QuoteCurrency,
		Live:               b.cfg.TradingConfig.Live,
		LastActionOverride: b.cfg.TradingConfig.LastActionOverride,
	}, b.logger)

	return rec.Reconcile(ctx)
}

// checkActionableFunds refuses startup when the account cannot act at
// all from its current position.
func (b *Bot) checkActionableFunds(ctx context.Context) error {
	if !b.cfg.TradingConfig.Live {
		return nil
	}
	mkt := b.cfg.MarketConfig

	b.mu.RLock()
	inPosition := b.state.InPosition()
	b.mu.RUnlock()

	if inPosition {
		base, err := b.ex.GetBalance(ctx, mkt.BaseCurrency)
		if err != nil {
			return fmt.Errorf("failed to fetch %s balance: %w", mkt.BaseCurrency, err)
		}
		if base == 0 {
			return fmt.Errorf("%w: insufficient %s to place next sell order", ErrNoActionableFunds, mkt.BaseCurrency)
		}
		return nil
	}

	quote, err := b.ex.GetBalance(ctx, mkt.QuoteCurrency)
	if err != nil {
		return fmt.Errorf("failed to fetch %s balance: %w", mkt.QuoteCurrency, err)
	}
	if quote == 0 {
		return fmt.Errorf("%w: insufficient %s to place next buy order", ErrNoActionableFunds, mkt.QuoteCurrency)
	}
	return nil
}

// runLive polls on a fixed wall-clock cadence, decoupled from the
// candle granularity; the same-candle guard keeps faster polling from
// double-processing.
func (b *Bot) runLive(ctx context.Context) error {
	interval := time.Duration(b.cfg.MarketConfig.PollInterval) * time.Second

	if b.ticker != nil {
		b.ticker.Start()
		defer b.ticker.Stop()
	}

	b.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.setRunState(StateTerminated)
			return nil
		case <-b.stopChan:
			b.setRunState(StateTerminated)
			return nil
		case <-ticker.C:
			b.cycle(ctx)
		}
	}
}

// cycle runs one poll-and-process pass. Transient failures are warned
// and skipped; the next tick gets a fresh attempt.
func (b *Bot) cycle(ctx context.Context) {
	b.setRunState(StatePolling)

	candles, err := b.pollCandles(ctx)
	if err != nil {
		b.logger.Error("Candle polling failed for this cycle", "error", err)
		if b.eventBus != nil {
			b.eventBus.PublishError("bot", "candle polling failed", err)
		}
		return
	}

	price, err := b.currentPrice(ctx, candles)
	if err != nil {
		b.logger.Warn("Price fetch failed, using candle close", "error", err)
	}

	snap := b.indicators.Compute(candles)
	if price > 0 {
		snap.Price = price
	}

	b.setRunState(StateProcessing)
	b.process(ctx, snap)
	b.setRunState(StatePolling)
}

// pollCandles fetches the candle window with bounded retries. A window
// shorter than the configured lookback is treated like a fetch error:
// retried with backoff, never processed.
func (b *Bot) pollCandles(ctx context.Context) ([]exchange.Candle, error) {
	mkt := b.cfg.MarketConfig
	retries := b.cfg.TradingConfig.MaxPollRetries
	if retries <= 0 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 2 * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-b.stopChan:
				return nil, errors.New("bot stopped during candle polling")
			case <-time.After(backoff):
			}
		}

		candles, err := b.ex.GetCandles(ctx, mkt.Market, mkt.Granularity, mkt.Lookback)
		if err != nil {
			lastErr = err
			b.logger.Warn("Candle fetch failed", "attempt", attempt+1, "error", err)
			continue
		}
		if len(candles) < mkt.Lookback {
			lastErr = fmt.Errorf("candle window too short: %d < %d", len(candles), mkt.Lookback)
			b.logger.Warn("Candle window too short, retrying",
				"attempt", attempt+1, "got", len(candles), "want", mkt.Lookback)
			continue
		}
		return candles, nil
	}
	return nil, fmt.Errorf("candle polling exhausted %d retries: %w", retries, lastErr)
}

// currentPrice prefers the streamed ticker, then the REST ticker, and
// falls back to the latest candle close when both are stale or
// implausible.
func (b *Bot) currentPrice(ctx context.Context, candles []exchange.Candle) (float64, error) {
	last := candles[len(candles)-1]

	if b.ticker != nil {
		if price, ok := b.ticker.LastPrice(); ok && price >= last.Low {
			return price, nil
		}
	}

	price, err := b.ex.GetTicker(ctx, b.cfg.MarketConfig.Market)
	if err != nil {
		return last.Close, err
	}
	if price <= 0 || price < last.Low {
		return last.Close, nil
	}
	return price, nil
}

// process runs the decision engine over one snapshot and commits the
// outcome. Split from cycle so the simulation path can reuse it.
func (b *Bot) process(ctx context.Context, snap indicator.Snapshot) {
	b.mu.RLock()
	state := b.state
	b.mu.RUnlock()

	decision := engine.Decide(snap, state, b.cfg.RiskConfig, b.cfg.SignalConfig)

	b.mu.Lock()
	b.lastPrice = snap.Price
	b.lastDecision = &DecisionInfo{
		CandleTime: snap.CandleTime,
		Price:      snap.Price,
		Action:     string(decision.Action),
		ChangePct:  decision.ChangePct,
		Margin:     decision.Margin,
		Reasons:    decision.Reasons,
		DecidedAt:  time.Now().UTC(),
	}
	b.mu.Unlock()

	if decision.Delta.NewCandle {
		for _, hit := range snap.Patterns.Detected() {
			b.logger.Info("Candlestick detected",
				"market", b.cfg.MarketConfig.Market,
				"pattern", hit.Name,
				"strength", hit.Strength,
				"candle", snap.CandleTime)
		}
	}

	if !decision.Delta.NewCandle {
		b.logger.Debug("Candle already processed",
			"market", b.cfg.MarketConfig.Market,
			"candle", snap.CandleTime,
			"price", snap.Price)
		return
	}

	if decision.Significant() {
		if err := b.execute(ctx, snap, &decision); errors.Is(err, funds.ErrOrderSkipped) {
			b.logger.Warn("Order skipped, funds below market minimum",
				"action", string(decision.Action), "detail", err.Error())
			decision.Delta.Commit = false
		} else if err != nil {
			b.logger.Error("Order execution failed, state not advanced",
				"action", string(decision.Action), "error", err)
			if b.eventBus != nil {
				b.eventBus.PublishError("bot", "order execution failed", err)
			}
			if err := b.notifier.SendError("Order failed",
				fmt.Sprintf("%s %s: %v", decision.Action, b.cfg.MarketConfig.Market, err)); err != nil {
				b.logger.Warn("Notification failed", "error", err)
			}
			// The candle still counts as processed; only the trade
			// commit is withheld.
			decision.Delta.Commit = false
		}
	}

	b.commit(ctx, snap, decision)
}

// execute runs the funds guard and places the order. Fire-and-confirm:
// on an ambiguous acknowledgment the exchange is re-queried before the
// attempt is declared failed, so a filled order is never double-placed.
// The decision's delta is rewritten with actual fill details.
func (b *Bot) execute(ctx context.Context, snap indicator.Snapshot, decision *engine.Decision) error {
	mkt := b.cfg.MarketConfig
	live := b.cfg.TradingConfig.Live
	precision := engine.PricePrecision(snap.Price)

	intent := engine.OrderIntent{
		Market: mkt.Market,
		Side:   decision.Action,
		Price:  snap.Price,
		Reason: strings.Join(decision.Reasons, "; "),
	}

	switch decision.Action {
	case position.ActionBuy:
		if live {
			quote, err := b.ex.GetBalance(ctx, mkt.QuoteCurrency)
			if err != nil {
				return fmt.Errorf("failed to fetch %s balance: %w", mkt.QuoteCurrency, err)
			}
			if err := b.guard.CheckMinimumQuote(quote, snap.Price); err != nil {
				return err
			}
			intent.Amount = engine.Truncate(quote, precision)
		}
	case position.ActionSell:
		if live {
			base, err := b.ex.GetBalance(ctx, mkt.BaseCurrency)
			if err != nil {
				return fmt.Errorf("failed to fetch %s balance: %w", mkt.BaseCurrency, err)
			}
			if err := b.guard.CheckMinimumBase(base); err != nil {
				return err
			}
			intent.Amount = base
		}
	}

	if err := b.notifier.SendSignal(mkt.Market, string(decision.Action), intent.Reason, snap.Price); err != nil {
		b.logger.Warn("Signal notification failed", "error", err)
	}
	if b.eventBus != nil {
		b.eventBus.PublishSignal(mkt.Market, string(decision.Action), intent.Reason, snap.Price)
	}

	if !live {
		b.logger.Info("Test order",
			"market", mkt.Market,
			"side", string(decision.Action),
			"price", engine.Truncate(snap.Price, precision))
		return nil
	}

	receipt, err := b.ex.PlaceMarketOrder(ctx, mkt.Market, string(decision.Action), intent.Amount)
	if err != nil {
		// The submission may have gone through before the ack was
		// lost. Re-query before trusting the in-memory guess.
		receipt = b.confirmPlacement(ctx, string(decision.Action))
		if receipt == nil {
			return fmt.Errorf("order placement failed: %w", err)
		}
		b.logger.Warn("Ambiguous order ack resolved from order history",
			"order_id", receipt.OrderID)
	}

	fillPrice := receipt.AvgFillPrice()
	if fillPrice <= 0 {
		fillPrice = snap.Price
	}

	decision.Delta.Price = fillPrice
	decision.Delta.Size = receipt.QuoteQty
	decision.Delta.Filled = receipt.Filled
	decision.Delta.Fee = receipt.QuoteQty * b.cfg.RiskConfig.TakerFeePct / 100

	b.logger.Info("Live order filled",
		"market", mkt.Market,
		"side", receipt.Side,
		"order_id", receipt.OrderID,
		"fill_price", fillPrice,
		"filled", receipt.Filled)
	if b.eventBus != nil {
		b.eventBus.PublishOrderPlaced(receipt.OrderID, mkt.Market, receipt.Side, fillPrice, intent.Amount)
	}
	return nil
}

// confirmPlacement re-queries recent order history after an ambiguous
// acknowledgment. Returns the matching fill, or nil if the order never
// reached the exchange.
func (b *Bot) confirmPlacement(ctx context.Context, side string) *exchange.OrderReceipt {
	orders, err := b.ex.GetOrders(ctx, b.cfg.MarketConfig.Market, side, exchange.OrderStatusFilled)
	if err != nil || len(orders) == 0 {
		return nil
	}

	last := orders[len(orders)-1]
	placedAt := time.UnixMilli(last.UpdateTime)
	if time.Since(placedAt) > time.Minute {
		return nil
	}

	return &exchange.OrderReceipt{
		Market:   last.Market,
		OrderID:  last.OrderID,
		Side:     last.Side,
		Price:    last.Price,
		Size:     last.Size,
		Filled:   last.Filled,
		QuoteQty: last.QuoteQty,
		Status:   last.Status,
	}
}

// commit applies the delta, persists the state and writes the audit
// trail. All money-affecting transitions are logged before the next
// tick begins.
func (b *Bot) commit(ctx context.Context, snap indicator.Snapshot, decision engine.Decision) {
	mkt := b.cfg.MarketConfig
	live := b.cfg.TradingConfig.Live

	b.mu.Lock()
	entryPrice := b.state.LastBuyPrice
	b.state.Apply(decision.Delta)
	stateCopy := *b.state
	b.mu.Unlock()

	if err := b.store.Save(ctx, &stateCopy); err != nil {
		b.logger.Warn("Failed to persist position state", "error", err)
	}

	if b.journal != nil {
		b.journal.Cycle(journal.CycleEntry{
			Market:     mkt.Market,
			CandleTime: snap.CandleTime,
			Price:      snap.Price,
			Action:     string(decision.Action),
			LastAction: string(stateCopy.LastAction),
			ChangePct:  decision.ChangePct,
			Margin:     decision.Margin,
			Triggers:   decision.Reasons,
			Live:       live,
		})
	}
	if b.eventBus != nil {
		b.eventBus.PublishCycle(mkt.Market, string(decision.Action), string(stateCopy.LastAction),
			snap.Price, decision.Margin, decision.Reasons)
	}

	if !decision.Delta.Commit {
		return
	}

	reason := strings.Join(decision.Reasons, "; ")

	switch decision.Action {
	case position.ActionBuy:
		if err := b.notifier.SendTradeOpen(mkt.Market, decision.Delta.Price, decision.Delta.Filled, live); err != nil {
			b.logger.Warn("Trade notification failed", "error", err)
		}
		if b.eventBus != nil {
			b.eventBus.PublishTradeOpened(mkt.Market, decision.Delta.Price, decision.Delta.Filled)
		}
	case position.ActionSell:
		if err := b.notifier.SendTradeClose(mkt.Market, entryPrice, decision.Delta.Price, decision.Margin, reason, live); err != nil {
			b.logger.Warn("Trade notification failed", "error", err)
		}
		if b.eventBus != nil {
			b.eventBus.PublishTradeClosed(mkt.Market, entryPrice, decision.Delta.Price, decision.Margin)
		}
	}

	if b.journal != nil {
		b.journal.Trade(journal.TradeEntry{
			Market: mkt.Market,
			Side:   string(decision.Action),
			Price:  decision.Delta.Price,
			Amount: decision.Delta.Size,
			Filled: decision.Delta.Filled,
			Margin: decision.Margin,
			Reason: reason,
			Live:   live,
		})
	}

	if b.repo != nil {
		trade := &database.Trade{
			Market:     mkt.Market,
			Side:       string(decision.Action),
			Price:      decision.Delta.Price,
			Amount:     decision.Delta.Size,
			Filled:     decision.Delta.Filled,
			Fee:        decision.Delta.Fee,
			Margin:     decision.Margin,
			Reason:     reason,
			Live:       live,
			CandleTime: snap.CandleTime,
		}
		if err := b.repo.SaveTrade(ctx, trade); err != nil {
			b.logger.Warn("Failed to record trade", "error", err)
		}
		snapshot := &database.PositionSnapshot{
			Market:       mkt.Market,
			LastAction:   string(stateCopy.LastAction),
			LastBuyPrice: stateCopy.LastBuyPrice,
			TrailingHigh: stateCopy.TrailingHigh,
			BuyCount:     stateCopy.BuyCount,
			SellCount:    stateCopy.SellCount,
			CandleTime:   snap.CandleTime,
		}
		if err := b.repo.SavePositionSnapshot(ctx, snapshot); err != nil {
			b.logger.Warn("Failed to record position snapshot", "error", err)
		}
	}
}

// runSimulation replays a pre-fetched historical series one candle per
// iteration, deterministically and without wall-clock sleeps. Given the
// same candle sequence it reproduces the decisions of a live run.
func (b *Bot) runSimulation(ctx context.Context) error {
	mkt := b.cfg.MarketConfig

	candles, err := b.ex.GetCandles(ctx, mkt.Market, mkt.Granularity, mkt.Lookback)
	if err != nil {
		b.setRunState(StateFatal)
		return fmt.Errorf("failed to fetch simulation series: %w", err)
	}
	if len(candles) == 0 {
		b.setRunState(StateFatal)
		return errors.New("simulation series is empty")
	}

	snapshots := b.indicators.ComputeAll(candles)
	slow := strings.EqualFold(b.cfg.TradingConfig.SimSpeed, "slow")

	for i := range snapshots {
		select {
		case <-ctx.Done():
			b.setRunState(StateTerminated)
			return nil
		case <-b.stopChan:
			b.setRunState(StateTerminated)
			return nil
		default:
		}

		b.setRunState(StateProcessing)
		b.process(ctx, snapshots[i])

		if slow {
			select {
			case <-ctx.Done():
				b.setRunState(StateTerminated)
				return nil
			case <-time.After(time.Second):
			}
		}
	}

	b.logSimulationSummary(snapshots[len(snapshots)-1].Price)
	b.setRunState(StateTerminated)
	return nil
}

// logSimulationSummary reports session counters, marking any position
// still open to the final price.
func (b *Bot) logSimulationSummary(finalPrice float64) {
	b.mu.RLock()
	state := *b.state
	b.mu.RUnlock()

	buySum := state.BuySum
	sellSum := state.SellSum
	if state.InPosition() {
		fee := finalPrice * b.cfg.RiskConfig.TakerFeePct / 100
		sellSum += finalPrice - fee
	}

	marginPct := 0.0
	if sellSum != 0 {
		marginPct = engine.Truncate((sellSum-buySum)/sellSum*100, 2)
	}

	b.logger.Info("Simulation summary",
		"market", b.cfg.MarketConfig.Market,
		"buy_count", state.BuyCount,
		"sell_count", state.SellCount,
		"buy_sum", engine.Truncate(buySum, 2),
		"sell_sum", engine.Truncate(sellSum, 2),
		"margin_pct", marginPct,
		"open_position", state.InPosition())
}
