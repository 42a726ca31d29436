// Package quota implements the admission ledger that tracks cumulative bytes
// processed per identity within a rolling window.
//
// The Ledger owns the tier ceilings and the window length; a Store owns the
// records. Store.Charge is the only write operation and must check the
// ceiling and increment usage as one atomic step per key, so two concurrent
// admissions can never both consume headroom that only fits one of them.
//
// Windows are rolling: a record older than the window is treated as absent
// on its next access, independent of how often the key is used.
package quota
