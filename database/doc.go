// Package database runs statement batches against Bun connections. It
// provides the batch Executor and its transaction policies, connection
// managers and factories, connection string sources, SQL seeding, query
// hooks for slow query logging, metrics and tracing, and error
// classification.
package database
