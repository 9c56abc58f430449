// Package ingest scrapes the configured feed page and queues new headlines
// as items in status new.
//
// Ingestion sits upstream of the pipeline and touches the item store only
// through Insert, so it can run from cron, `newsflow ingest --watch`, or by
// hand without coordinating with stage workers. Items are inserted oldest
// first so SelectByStatus ordering follows publication order. Ids are the hex
// SHA-256 of the article URL, which makes re-scraping the same page a no-op.
package ingest
