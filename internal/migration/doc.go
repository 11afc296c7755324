// Package migration moves normalized spreadsheets into the document store.
//
// Experiment sheets pass through the import gate, which derives an identity
// per row and drops rows whose identity already exists. Data sheets are
// linked to exactly one experiment by date; a sheet whose date matches
// several experiments is withheld and reported as an AmbiguousLink so a
// person can pick the experiment and resubmit it through LinkExplicit.
//
// Duplicate detection is check-then-insert and is not atomic against the
// store. Engine methods are safe to call concurrently, but two concurrent
// runs over the same input may both insert the same experiment.
package migration
