package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// LogFields flattens err into structured log fields: the typed code, the
// unwrap chain and, when a Postgres error sits in the chain, its SQLSTATE
// and constraint. Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	pg := map[string]string{}
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		pg["pg_code"] = pgxErr.Code
		pg["pg_constraint"] = pgxErr.ConstraintName
		pg["pg_table"] = pgxErr.TableName
		pg["pg_detail"] = pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		pg["pg_code"] = string(pqErr.Code)
		pg["pg_constraint"] = pqErr.Constraint
		pg["pg_table"] = pqErr.Table
		pg["pg_detail"] = pqErr.Detail
	}
	for k, v := range pg {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
