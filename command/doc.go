// Package command builds parameterised SQL commands with `:name`
// placeholders, checks that every compared placeholder is bound, and
// converts parameter values to the positional `?` form bun formats per
// dialect.
//
// A command carries at most one list parameter. It is renamed to
// ListParamName and expands to `(?, ?, ...)` when executed.
package command
