// Package notifier delivers operator notifications asynchronously.
//
// Notifications are small, high-signal messages (session summaries, takedown
// alerts). Producers call Notify and move on: the service queues, rate-limits,
// dedups, and delivers in the background. A failed delivery is logged and
// dropped; it never retries into the caller's path and never blocks it.
package notifier
