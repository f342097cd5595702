package position

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"crypto-trading-bot/internal/exchange"
	"crypto-trading-bot/internal/funds"
	"crypto-trading-bot/internal/logging"
)

// BalanceHeuristic guesses the position side from wallet balances when
// no order history exists. It is a guess, not a fact: callers log its
// outcome as such. The function is injectable so the rule can change
// without touching reconciliation flow.
type BalanceHeuristic func(base, quote float64) Action

// NormalizedBalanceHeuristic min-max normalizes the two balances onto
// [0,1] and picks the dominant side: more base than quote reads as an
// open position.
func NormalizedBalanceHeuristic(base, quote float64) Action {
	max := math.Max(base, quote)
	min := math.Min(base, quote)
	if max == min {
		return ActionWait
	}
	normBase := (base - min) / (max - min)
	normQuote := (quote - min) / (max - min)
	if normBase > normQuote {
		return ActionBuy
	}
	return ActionSell
}

// Reconciler derives the bot's starting position state from exchange
// reality: recent order history first, wallet balances as a fallback.
type Reconciler struct {
	ex        exchange.Exchange
	guard     *funds.Guard
	market    string
	base      string
	quote     string
	live      bool
	override  Action
	heuristic BalanceHeuristic
	logger    *logging.Logger
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Market        string
	BaseCurrency  string
	QuoteCurrency string
	Live          bool

	// LastActionOverride forces the reconciled action regardless of
	// what the exchange reports. Empty means no override.
	LastActionOverride string

	// Heuristic overrides the balance fallback rule. Nil selects
	// NormalizedBalanceHeuristic.
	Heuristic BalanceHeuristic
}

func NewReconciler(ex exchange.Exchange, guard *funds.Guard, opts ReconcilerOptions, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	h := opts.Heuristic
	if h == nil {
		h = NormalizedBalanceHeuristic
	}
	return &Reconciler{
		ex:        ex,
		guard:     guard,
		market:    opts.Market,
		base:      opts.BaseCurrency,
		quote:     opts.QuoteCurrency,
		live:      opts.Live,
		override:  Action(strings.ToUpper(opts.LastActionOverride)),
		heuristic: h,
		logger:    logger.WithComponent("reconciler"),
	}
}

// Reconcile determines the starting state. In dry-run the bot always
// starts flat. Live mode consults filled order history, then balances.
// An account with neither tradeable base nor quote funds is an error:
// the bot cannot act and must not start.
func (r *Reconciler) Reconcile(ctx context.Context) (*State, error) {
	state := NewState(r.market)

	if !r.live {
		r.logger.Info("Dry-run mode, starting with a flat position", "market", r.market)
		return r.applyOverride(state), nil
	}

	price, err := r.ex.GetTicker(ctx, r.market)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for reconciliation: %w", err)
	}
	baseBal, err := r.ex.GetBalance(ctx, r.base)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s balance: %w", r.base, err)
	}
	quoteBal, err := r.ex.GetBalance(ctx, r.quote)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s balance: %w", r.quote, err)
	}

	orders, err := r.ex.GetOrders(ctx, r.market, "", exchange.OrderStatusFilled)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order history: %w", err)
	}

	if len(orders) == 0 {
		if err := r.fromBalances(state, baseBal, quoteBal, price); err != nil {
			return nil, err
		}
		return r.applyOverride(state), nil
	}

	last := orders[len(orders)-1]

	if strings.EqualFold(last.Side, "buy") && baseBal > 0 {
		state.LastAction = ActionBuy
		state.LastBuyPrice = last.Price
		state.LastBuySize = last.QuoteQty
		state.LastBuyFilled = last.Filled
		state.LastBuyFee = last.Fee
		state.TrailingHigh = math.Max(last.Price, price)
		r.logger.Info("Resuming open position from order history",
			"market", r.market, "buy_price", last.Price, "filled", last.Filled)
		return r.applyOverride(state), nil
	}

	// Last order was a sell, or the bought base is gone. Starting flat
	// requires enough quote funds to ever buy; in log-only mode the
	// shortfall is warned and startup continues.
	if err := r.guard.CheckMinimumQuote(quoteBal, price); err != nil && !errors.Is(err, funds.ErrOrderSkipped) {
		return nil, fmt.Errorf("cannot start flat: %w", err)
	}
	state.LastAction = ActionSell
	r.logger.Info("Starting flat per order history", "market", r.market, "quote_balance", quoteBal)
	return r.applyOverride(state), nil
}

// fromBalances applies the balance heuristic when there is no order
// history to consult.
func (r *Reconciler) fromBalances(state *State, baseBal, quoteBal, price float64) error {
	if baseBal == 0 && quoteBal == 0 {
		return fmt.Errorf("%w: no %s and no %s available for %s",
			funds.ErrInsufficientFunds, r.base, r.quote, r.market)
	}

	action := r.heuristic(baseBal, quoteBal)
	state.LastAction = action

	if action == ActionBuy {
		// Entry price is unknown without history; the current price is
		// the only defensible reference.
		state.LastBuyPrice = price
		state.LastBuyFilled = baseBal
		state.LastBuySize = baseBal * price
		state.TrailingHigh = price
	}

	r.logger.Warn("No order history, position guessed from balances",
		"market", r.market,
		"base_balance", baseBal,
		"quote_balance", quoteBal,
		"guessed_action", string(action))
	return nil
}

func (r *Reconciler) applyOverride(state *State) *State {
	if r.override == "" {
		return state
	}
	if ValidAction(string(r.override)) && r.override != ActionWait {
		r.logger.Warn("Last action manually overridden",
			"market", r.market,
			"reconciled", string(state.LastAction),
			"override", string(r.override))
		state.LastAction = r.override
	}
	return state
}
