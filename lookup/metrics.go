package lookup

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const algorithmLabel = "algorithm"

var (
	trackedEntities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_lookup_tracked_entities",
		Help: "The number of entities currently tracked by the lookup state.",
	})

	fullRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_lookup_full_rebuilds",
		Help: "The number of full index rebuilds performed by Prepare.",
	}, []string{
		algorithmLabel,
	})

	prepareDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_lookup_prepare_duration_seconds",
		Help:    "The time spent rebuilding the lookup index.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{
		algorithmLabel,
	})

	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_lookup_queries",
		Help: "The number of radius queries served.",
	}, []string{
		algorithmLabel,
	})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_lookup_query_duration_seconds",
		Help:    "The time spent answering radius queries.",
		Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
	}, []string{
		algorithmLabel,
	})

	bvhTreeDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_lookup_bvh_tree_depth",
		Help: "The realized depth of the last built BVH tree.",
	})

	octreeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_lookup_octree_nodes",
		Help: "The number of nodes in the octree arena.",
	})
)
