package ingestion

import "github.com/aristath/chocosentinel/internal/clients"

// validationError is a rejection reason, counted but never aborting the
// containing batch (§4.3 step 2).
type validationError struct {
	reason string
}

func (e validationError) Error() string { return e.reason }

func validatePrice(rec clients.RawRecord) error {
	if _, ok := rec.Fields["price_eur_mwh"]; !ok {
		return validationError{"missing price_eur_mwh field"}
	}
	return nil
}

// validateWeather enforces §3 invariant 4: humidity in [0,100], temperature
// in [-40,60], pressure in [800,1100]. Fields absent from a record (not
// every upstream reports pressure, say) are not checked — only fields the
// record actually carries are validated.
func validateWeather(rec clients.RawRecord) error {
	if h, ok := rec.Fields["humidity"]; ok && (h < 0 || h > 100) {
		return validationError{"humidity out of range [0,100]"}
	}
	if t, ok := rec.Fields["temperature"]; ok && (t < -40 || t > 60) {
		return validationError{"temperature out of range [-40,60]"}
	}
	if p, ok := rec.Fields["pressure"]; ok && (p < 800 || p > 1100) {
		return validationError{"pressure out of range [800,1100]"}
	}
	return nil
}
