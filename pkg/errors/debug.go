package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// DBDetail is the driver-level context pulled out of a wrapped database error.
type DBDetail struct {
	Driver     string `json:"driver"`
	Code       string `json:"code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorDump flattens an error chain for logging. It never reaches clients.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Chain      []string  `json:"chain,omitempty"`
	DB         *DBDetail `json:"db,omitempty"`
}

// Fields renders the dump as flat log fields.
func (d ErrorDump) Fields() map[string]any {
	out := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		out["error_code"] = string(d.Code)
	}
	if d.DB == nil {
		return out
	}
	out["db_driver"] = d.DB.Driver
	for key, value := range map[string]string{
		"db_code":       d.DB.Code,
		"db_constraint": d.DB.Constraint,
		"db_table":      d.DB.Table,
		"db_column":     d.DB.Column,
		"db_detail":     d.DB.Detail,
		"db_message":    d.DB.Message,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.DB = dbDetail(err)
	return d
}

func dbDetail(err error) *DBDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBDetail{
			Driver:     "pgx",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBDetail{
			Driver:     "pq",
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}

	// sqlite reports the offending columns only in the message text.
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &DBDetail{
			Driver:  "sqlite",
			Code:    fmt.Sprintf("%d/%d", int(liteErr.Code), int(liteErr.ExtendedCode)),
			Detail:  liteErr.ExtendedCode.Error(),
			Message: liteErr.Error(),
		}
	}
	return nil
}
