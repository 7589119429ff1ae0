// Package dapper is a data-access helper over Bun. Commands with :name
// parameters are built and marshalled by package command, run in batches
// under a transaction policy by database.Executor, and combined with a
// generic entity repository in Helper.
package dapper
