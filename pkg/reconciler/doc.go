// Package reconciler merges the runtime's reported containers with the
// dispatcher's pending-launch state into one unified, deduplicated view.
package reconciler
