// Package core runs keyed CSV comparisons for the server and the CLI.
//
// It sits between the transports and the pure comparison packages:
//
//   - [Service] loads a before and an after source, hands them to
//     compare.Compare and keeps the result in a [Store].
//   - [Limiter] bounds how many comparisons hold tables in memory at once.
//   - [Service.StartRetention] prunes stored comparisons past their
//     retention period.
//   - [MapError] turns technical errors into user messages with support
//     codes.
//
// # Comparison flow
//
//  1. The caller passes two [Source] values and a [Request] naming the key.
//  2. The service takes a limiter slot and loads both sources concurrently.
//  3. compare.Compare reconciles columns, indexes keys and diffs cells.
//  4. The [Comparison] is saved under a fresh UUID and returned.
//
// Stores live in internal/store; core only defines the interface.
package core
