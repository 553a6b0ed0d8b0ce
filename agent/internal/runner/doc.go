// Package runner drives the alert set of the daemon.
//
// A Runner owns the current alerts and rebuilds them on Reload from the
// configuration file and the live light and job inventories. Tick updates
// every alert once, in configuration order, and stores each status. Run is
// the single goroutine that schedules both:
//
//	poll ticker    -> Tick
//	reload ticker  -> Reload
//	RequestReload  -> Reload (config file changed)
//
// Ticks and reloads never overlap. A reload whose build is fatal keeps the
// previous alert set, so a broken edit of the config file never darkens the
// lights.
package runner
