// Package chrono provides the clock and cron scheduling used by daemons.
package chrono

import "time"

// DefaultLocation is the zone the questionnaire schedule is defined in.
const DefaultLocation = "Asia/Shanghai"

// Clock is the source of the current time, tests replace it to decide what
// "now" is.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

type StandardClock struct {
	location *time.Location
}

// NewStandardClock loads the named zone, an empty name means DefaultLocation.
func NewStandardClock(zone string) (StandardClock, error) {
	if zone == "" {
		zone = DefaultLocation
	}
	location, err := time.LoadLocation(zone)
	if err != nil {
		return StandardClock{}, err
	}
	return StandardClock{location: location}, nil
}

// force the configured zone because the host zone of wherever this ends up
// running has nothing to do with when the questionnaire opens
func (s StandardClock) Now() time.Time {
	return time.Now().In(s.location)
}

func (s StandardClock) Location() *time.Location {
	return s.location
}
