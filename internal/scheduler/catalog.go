package scheduler

import "time"

// CatalogEntry names a canonical job and the trigger it runs on (§4.7). The
// job body itself is supplied by the caller at wiring time (cmd/server),
// since the scheduler package has no business importing every component
// C7 drives.
type CatalogEntry struct {
	ID      string
	Name    string
	Trigger Trigger
}

// Catalog is the fixed set of jobs the system registers at startup.
var Catalog = []CatalogEntry{
	{ID: "price_ingest", Name: "Ingest price window", Trigger: IntervalMinutes(5)},
	{ID: "weather_ingest_hybrid", Name: "Ingest hybrid weather", Trigger: IntervalMinutes(5)},
	{ID: "auto_backfill_check", Name: "Auto-backfill check", Trigger: IntervalMinutes(120)},
	{ID: "train_scoring", Name: "Train scoring models", Trigger: IntervalMinutes(30)},
	{ID: "train_forecaster", Name: "Train price forecaster", Trigger: CronDaily(2, 30)},
	{ID: "health_check", Name: "Store/client health check", Trigger: IntervalMinutes(15)},
	{ID: "token_refresh", Name: "Refresh weather-observation token", Trigger: CronDaily(3, 0)},
	{ID: "daily_backfill_validation", Name: "Daily backfill validation", Trigger: CronDaily(1, 0)},
	{ID: "weekly_cleanup", Name: "Weekly store-side retention cleanup", Trigger: CronWeekly(time.Sunday, 2, 0)},
	{ID: "hourly_optimization", Name: "Hourly production plan optimization", Trigger: IntervalMinutes(30)},
}
