package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToInterfaceFields(t *testing.T) {
	fields := map[string]float64{"price_eur_mwh": 85.3, "price_eur_kwh": 0.0853}
	out := toInterfaceFields(fields)
	assert.Equal(t, 85.3, out["price_eur_mwh"])
	assert.Equal(t, 0.0853, out["price_eur_kwh"])
}

func TestFilterFragment_Empty(t *testing.T) {
	assert.Equal(t, "", filterFragment(nil))
	assert.Equal(t, "", filterFragment(TagFilter{}))
}

func TestFilterFragment_SingleTag(t *testing.T) {
	frag := filterFragment(TagFilter{"station_id": "3195"})
	assert.Contains(t, frag, `r.station_id == "3195"`)
}

func TestFluxDuration(t *testing.T) {
	assert.Equal(t, "1h", fluxDuration(time.Hour))
	assert.Equal(t, "24h", fluxDuration(24*time.Hour))
	assert.Equal(t, "30m", fluxDuration(30*time.Minute))
}

func TestRFC3339_UsesUTC(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skip("tzdata not available")
	}
	local := time.Date(2026, 1, 15, 13, 0, 0, 0, loc)
	s := rfc3339(local)
	assert.Contains(t, s, "Z")
}

func TestBucketFor(t *testing.T) {
	s := &Store{opBkt: "operational", histBkt: "historical"}
	assert.Equal(t, "historical", s.bucketFor("siar_weather"))
	assert.Equal(t, "operational", s.bucketFor("energy_prices"))
	assert.Equal(t, "operational", s.bucketFor("weather_data"))
}
