package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	AdminsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admins_provisioned_total",
			Help: "Total number of admin provisioning runs by status",
		},
		[]string{"status"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admin_provisioning_duration_seconds",
			Help:    "Duration of admin provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 1, 10), // 0 to 10 seconds
		},
	)
	BrandingLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "branding_lookups_total",
			Help: "Total number of branding resolutions by result",
		},
		[]string{"result"},
	)
	NotificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notification deliveries by channel and status",
		},
		[]string{"channel", "status"},
	)
)

func InitMetrics() {
	for name, c := range map[string]prometheus.Collector{
		"AdminsProvisioned":      AdminsProvisioned,
		"ProvisioningDuration":   ProvisioningDuration,
		"BrandingLookups":        BrandingLookups,
		"NotificationsDelivered": NotificationsDelivered,
	} {
		if err := prometheus.Register(c); err != nil {
			log.Error().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}
}
