package domain

import "time"

// SignalType is the trade direction a ThreeGateResult resolves to (spec
// §3.5). NEUTRAL results are never persisted.
type SignalType string

const (
	SignalBuy     SignalType = "BUY"
	SignalSell    SignalType = "SELL"
	SignalNeutral SignalType = "NEUTRAL"
)

// GateResult is the outcome of evaluating one of the three gates against a
// condition.Snapshot (spec §3.4). AdditionalData carries gate1_environment
// forward into gate 2/3 plus per-condition diagnostics.
type GateResult struct {
	Valid            bool                   `json:"valid"`
	Pattern          string                 `json:"pattern"`
	Confidence       float64                `json:"confidence"`
	PassedConditions []string               `json:"passed_conditions"`
	FailedConditions []string               `json:"failed_conditions"`
	AdditionalData   map[string]interface{} `json:"additional_data"`
	Timestamp        time.Time              `json:"timestamp"`
}

// ThreeGateResult is the immutable signal produced by running all three
// gates against a symbol (spec §3.5), persisted to three_gate_signals.
type ThreeGateResult struct {
	Symbol            string      `db:"symbol" json:"symbol"`
	Gate1             GateResult  `db:"gate1" json:"gate1"`
	Gate2             GateResult  `db:"gate2" json:"gate2"`
	Gate3             GateResult  `db:"gate3" json:"gate3"`
	OverallConfidence float64     `db:"overall_confidence" json:"overall_confidence"`
	SignalType        SignalType  `db:"signal_type" json:"signal_type"`
	EntryPrice        float64     `db:"entry_price" json:"entry_price"`
	StopLoss          float64     `db:"stop_loss" json:"stop_loss"`
	TakeProfit        [3]float64  `db:"take_profit" json:"take_profit"`
	Timestamp         time.Time   `db:"created_at" json:"timestamp"`
}

// Tradeable reports whether the result carries a BUY or SELL direction.
// NEUTRAL results fail this check and are dropped before persistence
// (spec §3.5: "NEUTRAL: never persisted as a signal").
func (r ThreeGateResult) Tradeable() bool {
	return r.SignalType != SignalNeutral
}
