package infrastructure

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
	"linktrack/pkg/metrics"
)

// privateCIDRs contains parsed CIDR blocks for private IP ranges.
// Initialized once at package load time.
var privateCIDRs []*net.IPNet

func init() {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",  // IPv6 unique local
		"fe80::/10", // IPv6 link-local
	}

	for _, block := range privateBlocks {
		_, cidr, err := net.ParseCIDR(block)
		if err == nil {
			privateCIDRs = append(privateCIDRs, cidr)
		}
	}
}

// implements domain.GeoLocator using a MaxMind GeoLite2-City database.
// When no database path is configured, lookups degrade gracefully and
// every Locate call reports an error the caller treats as best-effort.
type GeoIPLocator struct {
	db      *maxminddb.Reader
	enabled bool
	mu      sync.RWMutex
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// cityRecord matches the GeoLite2-City database structure
type cityRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// creates a new GeoIP locator. An empty dbPath disables lookups.
func NewGeoIPLocator(dbPath string, logger *logger.Logger, metrics *metrics.Metrics) (*GeoIPLocator, error) {
	l := &GeoIPLocator{logger: logger, metrics: metrics}

	if dbPath == "" {
		logger.Warn("GeoIP database path not configured, geolocation disabled")
		return l, nil
	}

	db, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	l.db = db
	l.enabled = true

	logger.WithField("path", dbPath).Info("GeoIP database loaded")
	return l, nil
}

// Close releases the underlying database reader
func (l *GeoIPLocator) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	l.enabled = false
	return err
}

// Locate resolves coarse geography for an IP address
func (l *GeoIPLocator) Locate(ctx context.Context, ip string) (*domain.Location, error) {
	if err := ctx.Err(); err != nil {
		l.metrics.RecordGeoLookup("canceled")
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.enabled {
		l.metrics.RecordGeoLookup("disabled")
		return nil, fmt.Errorf("geolocation disabled")
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		l.metrics.RecordGeoLookup("invalid_ip")
		return nil, fmt.Errorf("invalid IP address: %q", ip)
	}

	if parsed.IsLoopback() || isPrivateIP(parsed) {
		l.metrics.RecordGeoLookup("private")
		return &domain.Location{Country: "LOCAL"}, nil
	}

	var record cityRecord
	if err := l.db.Lookup(parsed, &record); err != nil {
		l.metrics.RecordGeoLookup("error")
		return nil, fmt.Errorf("GeoIP lookup failed: %w", err)
	}

	if record.Country.ISOCode == "" {
		l.metrics.RecordGeoLookup("miss")
		return nil, fmt.Errorf("no GeoIP record for %s", ip)
	}

	l.metrics.RecordGeoLookup("success")
	return &domain.Location{
		Country:   record.Country.ISOCode,
		City:      record.City.Names["en"],
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}, nil
}

// isPrivateIP checks if an IP address is in a private range
func isPrivateIP(ip net.IP) bool {
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
