// Package store persists verification events and per-guild settings.
//
// It currently supports:
//   - Verification event appends and newest-first listing
//   - Guild settings (log channel, verbose flag) with field-level upserts
package store
