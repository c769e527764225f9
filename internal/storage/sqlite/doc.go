// Package sqlite provides the persistent cache adapter backed by SQLite.
//
// The database only holds derived query payloads that can be rebuilt from
// the API, so it is safe to delete the file at any time. Schema changes ship
// as embedded `-- +migrate Up` files applied once each, in filename order.
package sqlite
