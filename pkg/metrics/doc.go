/*
Package metrics exposes the agent's Prometheus gauges and counters:
per-container resource usage, daemon-wide container counts, node
resource availability, and dispatcher/reconciler operational metrics.
The heartbeat loop refreshes the node gauges and the dispatcher and
reconciler update the operational ones; the per-container and
daemon-wide gauges are registered but not set by any code in the agent.
Handler returns the scrape handler mounted at /metrics.
*/
package metrics
