// Package position tracks the bot's view of its market position: the
// last significant action taken, the recorded entry, the trailing
// high-water mark, and cumulative trade statistics. It also reconciles
// that view against exchange reality at startup.
package position

import (
	"time"
)

// Action is a trade decision outcome.
type Action string

const (
	ActionWait Action = "WAIT"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// ValidAction reports whether s names a known action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionWait, ActionBuy, ActionSell:
		return true
	}
	return false
}

// State is the bot's position record for a single market.
//
// LastAction is the most recent significant (non-WAIT) action. While it
// is BUY the LastBuy* fields describe the open entry and TrailingHigh
// tracks the highest observed price since that entry; on SELL all of
// them are cleared.
type State struct {
	Market     string `json:"market"`
	LastAction Action `json:"last_action"`

	// Entry details, populated only while LastAction == BUY.
	LastBuyPrice  float64 `json:"last_buy_price"`  // execution price of the entry
	LastBuySize   float64 `json:"last_buy_size"`   // quote spent
	LastBuyFilled float64 `json:"last_buy_filled"` // base acquired
	LastBuyFee    float64 `json:"last_buy_fee"`    // fee paid, in quote

	// TrailingHigh is the highest price observed since the entry.
	TrailingHigh float64 `json:"trailing_high"`

	// LastCandle identifies the most recent candle the decision engine
	// processed, keyed by the exchange's candle close timestamp.
	LastCandle time.Time `json:"last_candle"`

	// Session statistics.
	BuyCount  int     `json:"buy_count"`
	SellCount int     `json:"sell_count"`
	BuySum    float64 `json:"buy_sum"`  // cumulative entry prices incl. fees
	SellSum   float64 `json:"sell_sum"` // cumulative exit prices net of fees

	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns a flat state for the market.
func NewState(market string) *State {
	return &State{
		Market:     market,
		LastAction: ActionSell,
		UpdatedAt:  time.Now().UTC(),
	}
}

// InPosition reports whether the state describes an open entry.
func (s *State) InPosition() bool {
	return s.LastAction == ActionBuy
}

// Margin returns the percentage change from the entry price to price,
// adjusted for the round-trip fee, or 0 when not in a position.
func (s *State) Margin(price, feePct float64) float64 {
	if !s.InPosition() || s.LastBuyPrice <= 0 {
		return 0
	}
	raw := (price/s.LastBuyPrice - 1) * 100
	return raw - feePct
}

// Delta is the state mutation a processed candle commits. A delta with
// NewCandle unset is a no-op: the candle was already processed.
type Delta struct {
	NewCandle  bool
	CandleTime time.Time

	// TrailingHigh carries the updated high-water mark while in a
	// position. Zero means no update.
	TrailingHigh float64

	// Commit marks a significant action. Price, Size, Filled and Fee
	// describe the executed order.
	Commit bool
	Action Action
	Price  float64
	Size   float64
	Filled float64
	Fee    float64
}

// Apply folds a delta into the state. The candle pointer always
// advances on a new candle, even for WAIT decisions, so the same candle
// is never processed twice. On BUY the trailing high resets to the
// entry price; on SELL the entry fields clear.
func (s *State) Apply(d Delta) {
	if !d.NewCandle {
		return
	}

	s.LastCandle = d.CandleTime
	if d.TrailingHigh > s.TrailingHigh {
		s.TrailingHigh = d.TrailingHigh
	}

	if d.Commit {
		switch d.Action {
		case ActionBuy:
			s.LastAction = ActionBuy
			s.LastBuyPrice = d.Price
			s.LastBuySize = d.Size
			s.LastBuyFilled = d.Filled
			s.LastBuyFee = d.Fee
			s.TrailingHigh = d.Price
			s.BuyCount++
			s.BuySum += d.Price + d.Fee
		case ActionSell:
			s.LastAction = ActionSell
			s.LastBuyPrice = 0
			s.LastBuySize = 0
			s.LastBuyFilled = 0
			s.LastBuyFee = 0
			s.TrailingHigh = 0
			s.SellCount++
			s.SellSum += d.Price - d.Fee
		}
	}

	s.UpdatedAt = time.Now().UTC()
}
