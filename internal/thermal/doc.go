// Package thermal implements the thermal cost governor: physical
// resource pressure scales the fuel price of actions and, at the top
// tier, cuts off admission entirely.
//
// Pressure is read from a small shared JSON record written by an
// external sensor feed. A missing, corrupt, or stale record is always
// read as "cool" so sensor trouble can never inflate costs or block
// work on its own.
//
// Usage:
//
//	gov := thermal.NewGovernor(thermal.Options{StateFile: path}, log)
//	if gov.ShouldThrottle() {
//	    return ErrThrottled
//	}
//	charge(gov.AdjustedCost(baseCost))
package thermal
