// Package models defines domain entities and persistence interfaces for the musicrank curation engine.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [TrackMetadata] : Song metadata returned by the streaming platform
//   - [ExternalPlaylist] : A playlist created on the streaming platform
//   - [ProposalListing] : A proposal paired with its cached track metadata for presentation
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Community] : A group curating one external playlist, with an admin and participants
//   - [Proposal] : A candidate track within a community and its voters
//   - [Credential] : OAuth tokens for one external account
//   - [CachedSong] : Write-once track metadata keyed by track id
//
// All persistent entities implement the Model interface providing identity, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
