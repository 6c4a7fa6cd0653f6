// Package db provides embedded database schema and migration files.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables and their
// row-level security policies. It is safe to apply repeatedly.
//
//go:embed migrations/001_schema.sql
var Schema string
