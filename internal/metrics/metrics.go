// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ender_feed"

var (
	FeedBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_builds_total",
		Help:      "Feed builds by outcome (ok, empty, error, cancelled).",
	}, []string{"outcome"})

	FeedBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "feed_build_duration_seconds",
		Help:      "Time from request until the feed finished, by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	FeedPostsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_posts_emitted_total",
		Help:      "Enriched posts emitted into feeds.",
	})

	EngagementBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "engagement_name_batch_size",
		Help:      "Distinct user IDs resolved per batched name lookup.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	GraphPartialUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_partial_updates_total",
		Help:      "Follow/unfollow calls that left an asymmetric edge.",
	}, []string{"op"})

	GraphEdgesRepaired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_edges_repaired_total",
		Help:      "Asymmetric follow edges repaired by the reconciler.",
	})

	NameCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "name_cache_lookups_total",
		Help:      "Username cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)
