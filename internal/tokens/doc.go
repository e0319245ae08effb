// Package tokens stores the bearer token in a single-slot SQLite table and
// offers signature-less JWT claim inspection for display purposes. Inspect
// never verifies tokens; the server remains the only authority on validity.
package tokens
