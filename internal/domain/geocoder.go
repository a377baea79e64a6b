package domain

import "context"

// Geocoder resolves a UK postcode to coordinates and administrative details.
type Geocoder interface {
	// Geocode resolves a postcode to a Location. An unknown postcode yields
	// an error of kind KindInputNotFound; connectivity problems yield
	// KindTransport. The input may be in any casing or spacing.
	Geocode(ctx context.Context, postcode string) (Location, error)
}
