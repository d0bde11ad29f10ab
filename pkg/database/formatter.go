package database

import (
	"errors"
	"strings"

	dberr "parajoin/pkg/error"
	"parajoin/pkg/planner"
)

// FormatResult renders the output line of a successful query.
func FormatResult(res *planner.Result) string {
	return res.String()
}

// FormatError renders the output line of a failed query. Only the message
// and detail of a DBError are printed; stacks stay in the logs.
func FormatError(err error) string {
	var dbErr *dberr.DBError
	if !errors.As(err, &dbErr) {
		return "ERROR " + oneLine(err.Error())
	}
	msg := dbErr.Message
	if dbErr.Detail != "" {
		msg += ": " + dbErr.Detail
	}
	return "ERROR " + oneLine(msg)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
