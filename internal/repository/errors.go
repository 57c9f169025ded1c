package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert or update hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrConcurrentUpdate is returned when PostgreSQL aborts a transaction on a
// serialization or deadlock failure.
var ErrConcurrentUpdate = errors.New("concurrent update")

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqInvalidTextRepr      = "22P02"
)

// translate maps driver errors onto repository sentinels, leaving anything
// else untouched. A malformed identifier can never match a row, so it reads
// as sql.ErrNoRows.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		return ErrDuplicate
	case pqSerializationFailure, pqDeadlockDetected:
		return ErrConcurrentUpdate
	case pqInvalidTextRepr:
		return sql.ErrNoRows
	}
	return err
}
