package price

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/chocosentinel/internal/calendar"
	"github.com/aristath/chocosentinel/internal/timeseries"
)

const priceField = "price_eur_kwh"

// TrainFromStore loads price_eur_kwh points over [start, end) from the
// measurement energy_prices and fits a Model against them.
func TrainFromStore(ctx context.Context, store timeseries.StoreAPI, measurement string, cal *calendar.Calendar, start, end time.Time, log zerolog.Logger) (*Model, error) {
	points, err := store.Range(ctx, measurement, timeseries.TagFilter{}, start, end)
	if err != nil {
		return nil, fmt.Errorf("price forecaster: load training range: %w", err)
	}

	obs := make([]Observation, 0, len(points))
	for _, p := range points {
		v, ok := p.Fields[priceField]
		if !ok {
			continue
		}
		obs = append(obs, Observation{Time: p.Time, Price: v})
	}

	return Train(obs, cal, log)
}
