// Package alert turns the health of a group of jobs into a light directive
// and decides when a change is worth announcing.
//
// Each tick Alert.Update refreshes its jobs, drops ignored ones, and picks
// one of three states:
//
//	green   every counted job ok                → white, 180
//	red     a failing job is not claimed         → red, 240
//	orange  every failing job is claimed         → orange, 240
//
// The directive is applied on every tick. When the (ok, color) signature
// differs from the previous tick the alert logs the change, flashes its
// lights (except on its very first update) and notifies its Observer.
//
// Build assembles alerts from configuration and reports a typed
// BuildResult instead of failing on the first bad entry.
package alert
