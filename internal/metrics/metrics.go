package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ecopoints_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	ActivitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_activities_total",
		Help: "Ledger entries applied, by source (task or manual).",
	}, []string{"source"})

	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecopoints_points_awarded_total",
		Help: "Points credited across all accounts.",
	})

	CO2SavedKgTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecopoints_co2_saved_kg_total",
		Help: "Kilograms of CO2 credited across all accounts.",
	})

	LevelUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_level_ups_total",
		Help: "Level transitions, by reached level.",
	}, []string{"level"})

	RankingCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_ranking_cache_total",
		Help: "Ranking cache lookups, by result (hit or miss).",
	}, []string{"result"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecopoints_rate_limited_total",
		Help: "Requests rejected by the rate limiter.",
	})

	EmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_emails_total",
		Help: "Emails handed to SMTP, by result.",
	}, []string{"result"})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecopoints_events_published_total",
		Help: "Domain events published, by type and result.",
	}, []string{"type", "result"})
)
