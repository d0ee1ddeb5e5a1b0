// Package wdp solves the winner determination problem of a flexibility market
// round with a valuation-ordered greedy heuristic.
//
// Bids are ranked by valuation, highest first, ties keeping submission order.
// Each bid is then accepted only if every one of its line items fits in the
// remaining capacity of its interval, in which case all of them are committed
// at once. A rejected bid is never reconsidered. The heuristic is fast but
// not optimal: a single high-valuation bid may block several cheaper bids
// whose combined valuation is larger. RelaxationBound reports how far from
// the fractional optimum a round may be without changing the winners.
package wdp
