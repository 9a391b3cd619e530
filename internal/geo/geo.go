package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the WGS-84 mean earth radius.
const EarthRadiusKm = 6371.0

const (
	streetDelta  = 0.01
	countryDelta = 30.0
)

var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

// Coordinates is a position in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate reports whether c lies inside the valid latitude/longitude ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// MapRegion is the visible map area: a centre plus zoom extents.
type MapRegion struct {
	Coordinates
	LatitudeDelta  float64 `json:"latitude_delta"`
	LongitudeDelta float64 `json:"longitude_delta"`
}

// DefaultRegion is the country-scale region shown until the device position is known.
var DefaultRegion = CountryRegion(Coordinates{Latitude: -14.235, Longitude: -51.9253})

// CountryRegion returns a country-scale region centred on c.
func CountryRegion(c Coordinates) MapRegion {
	return MapRegion{Coordinates: c, LatitudeDelta: countryDelta, LongitudeDelta: countryDelta}
}

// StreetRegion returns a street-scale region centred on c.
func StreetRegion(c Coordinates) MapRegion {
	return MapRegion{Coordinates: c, LatitudeDelta: streetDelta, LongitudeDelta: streetDelta}
}

// IsStreetScale reports whether r was narrowed to a resolved position.
func (r MapRegion) IsStreetScale() bool {
	return r.LatitudeDelta <= streetDelta && r.LongitudeDelta <= streetDelta
}

// DistanceKm returns the great-circle distance between two points using the
// haversine formula.
func DistanceKm(origin, destination Coordinates) (float64, error) {
	if err := origin.Validate(); err != nil {
		return 0, err
	}
	if err := destination.Validate(); err != nil {
		return 0, err
	}

	lat1 := toRadians(origin.Latitude)
	lat2 := toRadians(destination.Latitude)
	dLat := toRadians(destination.Latitude - origin.Latitude)
	dLon := toRadians(destination.Longitude - origin.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// floating point error can push a slightly outside [0, 1] near the antipode
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c, nil
}

// DistanceLabel renders the distance between origin and destination for display.
func DistanceLabel(origin, destination Coordinates) (string, error) {
	km, err := DistanceKm(origin, destination)
	if err != nil {
		return "", err
	}
	return FormatDistance(km), nil
}

// FormatDistance renders whole meters below one kilometre and kilometres with
// one decimal place otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d meters", int64(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
