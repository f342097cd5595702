package journal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid journal line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestCycleEntry(t *testing.T) {
	var buf bytes.Buffer
	j := NewWithWriter(&buf)

	j.Cycle(CycleEntry{
		Market:     "BTCUSDT",
		CandleTime: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Price:      42000,
		Action:     "SELL",
		LastAction: "BUY",
		ChangePct:  4.2,
		Margin:     3.2,
		Triggers:   []string{"Profit Bank Triggered (> 3.00%)"},
		Live:       false,
	})

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	line := lines[0]
	if line["event"] != "cycle" || line["market"] != "BTCUSDT" {
		t.Errorf("unexpected entry: %v", line)
	}
	if line["margin"].(float64) != 3.2 {
		t.Errorf("margin missing while in position: %v", line)
	}
	triggers, ok := line["triggers"].([]interface{})
	if !ok || len(triggers) != 1 {
		t.Errorf("triggers missing: %v", line)
	}
}

func TestCycleEntryOmitsMarginWhenFlat(t *testing.T) {
	var buf bytes.Buffer
	j := NewWithWriter(&buf)

	j.Cycle(CycleEntry{
		Market:     "BTCUSDT",
		CandleTime: time.Now().UTC(),
		Price:      42000,
		Action:     "WAIT",
		LastAction: "SELL",
	})

	line := decodeLines(t, &buf)[0]
	if _, ok := line["margin"]; ok {
		t.Error("margin is meaningless while flat and must be omitted")
	}
	if _, ok := line["triggers"]; ok {
		t.Error("empty triggers must be omitted")
	}
}

func TestTradeEntry(t *testing.T) {
	var buf bytes.Buffer
	j := NewWithWriter(&buf)

	j.Trade(TradeEntry{
		Market: "BTCUSDT",
		Side:   "BUY",
		Price:  41950.5,
		Amount: 500,
		Filled: 0.0119,
		Reason: "buy signal: crossover confirmed",
		Live:   true,
	})

	line := decodeLines(t, &buf)[0]
	if line["event"] != "trade" || line["side"] != "BUY" {
		t.Errorf("unexpected entry: %v", line)
	}
	if line["live"] != true {
		t.Errorf("live flag lost: %v", line)
	}
}

func TestCloseWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	j := NewWithWriter(&buf)
	if err := j.Close(); err != nil {
		t.Errorf("closing a writer-backed journal should be a no-op: %v", err)
	}
}
