// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: single-statement lease lock acquisition (INSERT ... ON CONFLICT
// DO UPDATE ... WHERE) evaluated against the database clock, token-checked
// release, and embedded SQL migrations.
package postgres
