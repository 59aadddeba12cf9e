// Package cache defines the object-store abstraction shared by the artifact
// cache and the secret provider, plus the artifact cache itself. Backends map
// flat keys such as cache/<repo>/<path> or credentials/<name> onto either a
// local directory (temp file + rename) or a Google Cloud Storage bucket.
// Writers are two-phase: bytes only become visible under a key after Commit,
// so an aborted fill never leaves a truncated object behind.
// The Cache type layers the metadata freshness policy on top: stale
// maven-metadata.xml entries are evicted lazily when Exists is consulted.
package cache
