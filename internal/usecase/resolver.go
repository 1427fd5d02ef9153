package usecase

import (
	"context"
	"time"

	"github.com/mileusna/useragent"

	"linktrack/internal/domain"
	"linktrack/pkg/logger"
)

// GeoDeviceResolver derives coarse geography and a device/browser/OS
// classification from a click's raw network address and user-agent string.
// Geolocation is a fallible external call bounded by a short timeout; on
// failure the click is recorded without location data.
type GeoDeviceResolver struct {
	geo     domain.GeoLocator
	timeout time.Duration
	logger  *logger.Logger
}

// creates a new resolver. geo may be nil when geolocation is unavailable.
func NewGeoDeviceResolver(geo domain.GeoLocator, timeout time.Duration, logger *logger.Logger) *GeoDeviceResolver {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &GeoDeviceResolver{
		geo:     geo,
		timeout: timeout,
		logger:  logger,
	}
}

// Resolve returns best-effort location and device signals. Either result
// may be nil; neither failure mode fails the click.
func (r *GeoDeviceResolver) Resolve(ctx context.Context, ip, userAgent string) (*domain.Location, *domain.Device) {
	device := parseDevice(userAgent)

	var location *domain.Location
	if r.geo != nil && ip != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		loc, err := r.geo.Locate(lookupCtx, ip)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("ip", ip).Debug("Geo lookup failed, recording click without location")
		} else {
			location = loc
		}
	}

	return location, device
}

// parseDevice extracts browser, OS, and device type from a user agent string
func parseDevice(uaString string) *domain.Device {
	if uaString == "" {
		return nil
	}

	ua := useragent.Parse(uaString)

	device := &domain.Device{
		Browser: ua.Name,
		OS:      ua.OS,
	}
	if device.Browser == "" {
		device.Browser = "Unknown"
	}
	if device.OS == "" {
		device.OS = "Unknown"
	}

	switch {
	case ua.Mobile:
		device.Type = "mobile"
	case ua.Tablet:
		device.Type = "tablet"
	case ua.Bot:
		device.Type = "bot"
	default:
		device.Type = "desktop"
	}

	return device
}
