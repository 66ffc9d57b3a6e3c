// Package archive implements the content archive client: search and
// metadata lookups, file selection, and file downloads with retry and
// optional checksum verification.
package archive
