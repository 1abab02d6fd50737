// Package observability holds the prometheus collectors and the OpenTelemetry tracer.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_like_toggles_total",
		Help: "Like toggles by resulting state",
	}, []string{"state"})

	PostsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_posts_written_total",
		Help: "Post create/update/delete operations",
	}, []string{"op", "status"})

	CommentsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_comments_written_total",
		Help: "Comment create/update/move/delete operations",
	}, []string{"op"})

	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_search_queries_total",
		Help: "Search queries by ranking engine",
	}, []string{"engine"})

	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "realblog_search_results",
		Help:    "Number of results returned above the relevance cutoff",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	AvatarNormalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_avatar_normalizations_total",
		Help: "Avatar normalizer outcomes",
	}, []string{"result"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_emails_sent_total",
		Help: "Outgoing e-mail by kind and result",
	}, []string{"kind", "result"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "realblog_redis_errors_total",
		Help: "Redis command errors",
	}, []string{"command"})
)
