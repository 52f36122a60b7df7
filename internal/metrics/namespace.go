// Package metrics holds the Prometheus collectors and the in-process call
// counters read by the stats endpoint.
package metrics

const namespace = "storyrag"
