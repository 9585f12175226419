package domain

import "fmt"

func ValidateLocation(loc Location) error {
	if loc.Lat < -90 || loc.Lat > 90 {
		return fmt.Errorf("lat %v out of range: %w", loc.Lat, ErrInvalidCoordinates)
	}
	if loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("lng %v out of range: %w", loc.Lng, ErrInvalidCoordinates)
	}
	return nil
}

func ValidateRole(role string) bool {
	switch role {
	case RoleAdmin, RoleCustomer, RoleRestaurant:
		return true
	default:
		return false
	}
}
