// Package tokenstore persists one OAuth token record per identity as a JSON
// file.
//
// Files live at <dir>/<prefix><escaped identity>.json where the identity is
// escaped with url.PathEscape, so distinct identities never share a file and
// no identity can name a path outside the directory.
//
// SECURITY: Records are stored in clear JSON. The directory is created with
// 0700 permissions and files are written with 0600. Token values are never
// logged; audit lines carry a truncated identity only.
//
// Saves are atomic: the record is written to a temporary file in the same
// directory, synced and renamed over the target. Concurrent saves for the same
// identity are last-writer-wins and readers never observe a partial file.
package tokenstore
