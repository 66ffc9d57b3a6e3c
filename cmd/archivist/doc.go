// Package main hosts the Archivist CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon: searching the archive, queueing and cancelling
// transfers, watching live progress, and managing settings, bookmarks, and
// configuration scaffolding.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
