package db

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// SQLiteGeoDriver is a sqlite3 driver with geo_distance(lat1, lng1, lat2, lng2)
// registered on every connection.
const SQLiteGeoDriver = "sqlite3_geo"

var registerOnce sync.Once

func registerSQLiteGeo() {
	registerOnce.Do(func() {
		sql.Register(SQLiteGeoDriver, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("geo_distance", geoDistance, true)
			},
		})
	})
}

// geoDistance takes any because sqlite hands integral coordinates over as int64.
func geoDistance(lat1, lng1, lat2, lng2 any) (float64, error) {
	coords := make([]float64, 4)
	for i, v := range []any{lat1, lng1, lat2, lng2} {
		switch n := v.(type) {
		case float64:
			coords[i] = n
		case int64:
			coords[i] = float64(n)
		default:
			return 0, fmt.Errorf("geo_distance: argument %d is %T, want number", i+1, v)
		}
	}
	return Haversine(coords[0], coords[1], coords[2], coords[3]), nil
}
