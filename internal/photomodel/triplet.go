package photomodel

// SyncTriplet is the per-album persistent reconciliation hint described in
// spec.md §3/§4.3: the wall time of the last successful comparison, the
// remote LastUpdated observed at that moment, and the album directory's
// mtime observed at that moment. All fields are epoch seconds.
//
// Invariant: if any one field is set, all three must be. A zero-value
// SyncTriplet with Valid == false means "never synced".
type SyncTriplet struct {
	SyncTime   float64
	OnlineTime float64
	DiskTime   float64
	Valid      bool
}
