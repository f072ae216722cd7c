package db

import (
	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
)

// DateParam renders d for a `$n::date` placeholder. Text survives both the
// extended and the simple query protocol unchanged.
func DateParam(d civil.Date) string {
	return d.String()
}

// CivilDate converts a scanned DATE column. NULL and infinity report false.
func CivilDate(d pgtype.Date) (civil.Date, bool) {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return civil.Date{}, false
	}
	return civil.DateOf(d.Time), true
}
