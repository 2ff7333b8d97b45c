// Package repositories implements SQLite and PostgreSQL persistence for all domain entities.
//
// Each repository writes '?' placeholders and runs through [shared.DB], which rebinds them for the
// active driver. Invariants are enforced by the schema (primary keys, a partial unique index on
// active proposals) and surfaced as [shared.ErrConflict] or [shared.ErrNotFound].
//
// Key Implementations:
//   - [CommunityRepository] : Communities and their participant sets, plus playlist sync bookkeeping
//   - [ProposalRepository] : Proposals with conditional status transitions and ranked listings
//   - [VoteRepository] : The vote ledger with atomic add and remove
//   - [CredentialRepository] : OAuth credentials, one per external account
//   - [SongCacheRepository] : Write-once track metadata cache in the database
//   - [RedisSongStore] : The same write-once cache backed by Redis SETNX
//
// Sequence numbers provide stable creation ordering (e.g., proposal #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
