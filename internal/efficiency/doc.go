// Package efficiency derives electrodialysis efficiency metrics from the
// measurement series of an experiment and memoizes them per experiment and
// time interval.
//
// The formulas work on fixed length windows of the series (five minutes by
// default). Cache.Calculate computes only the requested metrics that are not
// yet stored for the key and merges them into the stored record.
//
// Calculate holds no lock across its read and write of a key. Two concurrent
// calls for the same key may both compute a metric; the last upsert wins.
// Results are deterministic for the same stored inputs.
package efficiency
