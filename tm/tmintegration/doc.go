// Package tmintegration holds end-to-end tests driving a full
// [tmengine.Coordinator] -- with a real file-backed WAL and real
// Ed25519 signatures -- through complete consensus scenarios: the happy
// path, nil polkas, round skips, equivocation, and crash/replay.
package tmintegration
