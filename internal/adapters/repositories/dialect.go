package repositories

import (
	"database/sql"
	"rail-hazard-monitor/internal/domain"
	platformdb "rail-hazard-monitor/internal/platform/db"
	"strconv"
	"strings"
	"time"
)

// bind rewrites ? placeholders to $n for Postgres. Queries must not contain
// literal question marks.
func bind(driver, query string) string {
	if driver != platformdb.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg converts t to the column representation used by driver.
func timeArg(driver string, t time.Time) any {
	if driver == platformdb.DriverPostgres {
		return t.UTC()
	}
	return t.UnixMilli()
}

func nullablePoint(lon, lat sql.NullFloat64) *domain.GeoPoint {
	if !lon.Valid || !lat.Valid {
		return nil
	}
	return &domain.GeoPoint{Lon: lon.Float64, Lat: lat.Float64}
}
