// Package mongostore implements queue.Repository on MongoDB for deployments
// where stage workers run on different hosts and cannot share a SQLite file.
//
// Items live in one collection keyed by _id; the compare-and-swap is an
// UpdateOne whose filter includes the expected status. Per-stage tick
// summaries go to a sibling "<collection>_ticks" collection.
package mongostore
