// Package repository provides a generic repository built on Bun for CRUD
// by primary key, pagination, transactions, upserts and raw queries with
// named parameters.
package repository
