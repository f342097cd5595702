// Package journal emits the per-cycle audit trail: one structured line
// per processed candle with the computed action, position context and
// any risk trigger that fired. The format is append-only JSON lines so
// external tooling can tail it.
package journal

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// CycleEntry is one decision cycle's audit record.
type CycleEntry struct {
	Market     string
	CandleTime time.Time
	Price      float64
	Action     string
	LastAction string
	ChangePct  float64
	Margin     float64
	Triggers   []string
	Live       bool
}

// TradeEntry records a committed buy or sell.
type TradeEntry struct {
	Market  string
	Side    string
	Price   float64
	Amount  float64
	Filled  float64
	OrderID int64
	Margin  float64
	Reason  string
	Live    bool
}

// Journal writes audit records with zerolog.
type Journal struct {
	log    zerolog.Logger
	closer io.Closer
}

// New opens a journal at path. An empty path journals to stdout.
func New(path string) (*Journal, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal file: %w", err)
		}
		w = file
		closer = file
	}

	return &Journal{
		log:    zerolog.New(w).With().Timestamp().Logger(),
		closer: closer,
	}, nil
}

// NewWithWriter journals to an arbitrary writer. Intended for tests.
func NewWithWriter(w io.Writer) *Journal {
	return &Journal{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Cycle records one processed candle.
func (j *Journal) Cycle(e CycleEntry) {
	ev := j.log.Info().
		Str("event", "cycle").
		Str("market", e.Market).
		Time("candle", e.CandleTime).
		Float64("price", e.Price).
		Str("action", e.Action).
		Str("last_action", e.LastAction).
		Bool("live", e.Live)

	if e.LastAction == "BUY" {
		ev = ev.Float64("change_pct", e.ChangePct).Float64("margin", e.Margin)
	}
	if len(e.Triggers) > 0 {
		ev = ev.Strs("triggers", e.Triggers)
	}
	ev.Send()
}

// Trade records a committed order.
func (j *Journal) Trade(e TradeEntry) {
	j.log.Info().
		Str("event", "trade").
		Str("market", e.Market).
		Str("side", e.Side).
		Float64("price", e.Price).
		Float64("amount", e.Amount).
		Float64("filled", e.Filled).
		Int64("order_id", e.OrderID).
		Float64("margin", e.Margin).
		Str("reason", e.Reason).
		Bool("live", e.Live).
		Send()
}

// Close releases the journal file if one is open.
func (j *Journal) Close() error {
	if j.closer != nil {
		return j.closer.Close()
	}
	return nil
}
