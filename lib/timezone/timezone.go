package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		panic(err)
	}
}

// MPOB publishes by Malaysian calendar month, keep every timestamp the
// collector produces in that zone regardless of where it runs.
func Now() time.Time {
	return time.Now().In(Location)
}

// StartOfMonth returns midnight UTC on the first day of the given month.
func StartOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// DatePrefix formats t as YYYYMMDD in Location.
func DatePrefix(t time.Time) string {
	return t.In(Location).Format("20060102")
}
