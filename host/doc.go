// Package host loads application images into the reserved region and runs
// them.
//
// Loader fills the region from the filesystem or a hex stream and reports on
// what it loaded. Engine performs a run: it re-validates the entry point,
// brackets the call with the cache and barrier sequence freshly written code
// requires, and sweeps whatever the application left allocated.
package host
