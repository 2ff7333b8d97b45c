// Package tasks implements the song curation engine and keeps community playlists in sync.
//
// # Components
//
// The [Engine] is built from four parts:
//
//  1. [TokenCoordinator] : valid access tokens for any account
//     - Refreshes when forced or when expiresIn seconds have elapsed since the last refresh
//     - Concurrent refreshes for one account share a single exchange (singleflight)
//     - A revoked refresh token wraps shared.ErrAuthExpired; timeouts wrap shared.ErrUpstream
//
//  2. [SongCache] : cache-aside track metadata
//     - A hit never calls the platform
//     - Each caller refreshes its own credential before joining a fetch
//     - Concurrent misses for one track share a fetch; the store collapses duplicate inserts
//
//  3. [Synchronizer] : the external playlist follows the accepted set
//     - One push at a time per community, reading the accepted set inside the lock
//     - Tracks in proposal creation order; an empty set clears the playlist
//     - Failures are recorded on the community and wrap shared.ErrSyncFailed
//
//  4. Proposal lifecycle and vote ledger on the [Engine]
//     - Propose, Vote, Unvote, Accept, Deny, Restore
//     - Accept, Deny and Restore are admin-only and always synchronize
//
// # Proposal States
//
//	Pending  -> Accepted (accept)
//	Pending  -> Denied   (deny)
//	Accepted -> Denied   (deny)
//	Accepted -> Pending  (restore)
//	Denied   -> Pending  (restore)
//
// Status changes never touch votes. A local change is committed before its push; when only the
// push fails the caller receives the committed proposal and a SyncFailed error, and the next
// triggering action or [Engine.SyncCommunity] pushes again.
//
// # Policies
//
// [EngineOpts] carries the optional behaviors: AutoAccept promotes a pending proposal once its
// vote count reaches the community threshold, and AllowReproposeDenied lets a denied track be
// proposed again.
//
// # Storage
//
// The engine depends on the store interfaces in stores.go, implemented by the repositories package.
package tasks
