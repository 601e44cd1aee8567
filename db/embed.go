// Package db provides the embedded schema for the Postgres session store.
package db

import _ "embed"

// Schema contains the DDL statements for the session key/value table.
//
//go:embed migrations/001_schema.sql
var Schema string
