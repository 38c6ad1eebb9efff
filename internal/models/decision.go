package models

import (
	"fmt"
	"time"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

// DecisionKind tags the outcome of one trading day.
type DecisionKind string

const (
	// DecisionHeld means an open spread was inspected and left alone.
	DecisionHeld DecisionKind = "held"
	// DecisionOpened means a fresh spread was constructed.
	DecisionOpened DecisionKind = "opened"
	// DecisionRolledSide means one side was closed and rebuilt at the same
	// expiration.
	DecisionRolledSide DecisionKind = "rolled-side"
	// DecisionClosed means the spread was fully liquidated and no new one
	// was opened (a halt cooldown follows).
	DecisionClosed DecisionKind = "closed"
	// DecisionClosedAndReopened means the spread was fully liquidated and a
	// replacement was opened the same day.
	DecisionClosedAndReopened DecisionKind = "closed-and-reopened"
	// DecisionRollSuppressed means a roll trigger fired inside the minimum
	// hold period and was logged but not executed.
	DecisionRollSuppressed DecisionKind = "roll-suppressed"
	// DecisionSkipped means a halt cooldown consumed the day.
	DecisionSkipped DecisionKind = "skipped"
	// DecisionStayOut means the capital-exhausted guard blocked any open.
	DecisionStayOut DecisionKind = "stay-out"
	// DecisionFailed means a construction attempt failed; it is retried on
	// the next trading day.
	DecisionFailed DecisionKind = "failed"
)

// Decision is the tagged result of one daily step. Only the fields relevant
// to the Kind are populated.
type Decision struct {
	Kind   DecisionKind
	Reason string

	// Population varies by Kind.
	Side        market.Right // RolledSide
	CallStrike  float64      // Opened, ClosedAndReopened, RolledSide
	PutStrike   float64
	CallDelta   float64
	PutDelta    float64
	Credit      float64   // mark-based net credit of the construction
	CostToClose float64   // Closed, ClosedAndReopened
	Expiry      time.Time // Opened, ClosedAndReopened, RolledSide
	Halt        HaltReason
	Quantity    int
}

// Held builds the do-nothing outcome.
func Held() Decision {
	return Decision{Kind: DecisionHeld}
}

// Skipped builds the halt-cooldown outcome.
func Skipped(reason HaltReason, remaining int) Decision {
	return Decision{
		Kind:   DecisionSkipped,
		Halt:   reason,
		Reason: fmt.Sprintf("halt %s, %d day(s) remaining", reason, remaining),
	}
}

// StayOut builds the capital-exhausted outcome.
func StayOut(reason string) Decision {
	return Decision{Kind: DecisionStayOut, Reason: reason}
}

// Failed builds a construction-failure outcome; the reason is the named
// status from the builder or selector.
func Failed(reason string) Decision {
	return Decision{Kind: DecisionFailed, Reason: reason}
}

// String renders the decision for logs.
func (d Decision) String() string {
	switch d.Kind {
	case DecisionOpened:
		return fmt.Sprintf("opened call %.2f / put %.2f credit %.2f qty %d exp %s",
			d.CallStrike, d.PutStrike, d.Credit, d.Quantity, d.Expiry.Format("2006-01-02"))
	case DecisionRolledSide:
		return fmt.Sprintf("rolled %s side, credit %.2f: %s", d.Side, d.Credit, d.Reason)
	case DecisionClosed:
		return fmt.Sprintf("closed (cost %.2f): %s", d.CostToClose, d.Reason)
	case DecisionClosedAndReopened:
		return fmt.Sprintf("closed (cost %.2f) and reopened call %.2f / put %.2f credit %.2f: %s",
			d.CostToClose, d.CallStrike, d.PutStrike, d.Credit, d.Reason)
	default:
		if d.Reason == "" {
			return string(d.Kind)
		}
		return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
	}
}
