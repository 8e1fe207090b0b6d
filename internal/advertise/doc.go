// Package advertise implements one tenant's publishing pass.
//
// A session walks the tenant's targets in stored order, gated twice: the
// tenant-wide throttle window (24h between full sessions) and each target's
// own cooldown cadence. Eligible targets get the tenant defaults merged into
// their content template, are validated, and are submitted to the platform.
// Outcomes are recorded per target; a failing target never aborts the rest of
// the session.
package advertise
