// Package extract materializes archive entries as real files.
//
// Entries are written to <root>/<root id>/<entry path>. A file whose
// modification time equals the entry's stored time is considered current
// and is never touched; otherwise it is rewritten atomically and its
// modification time set to the stored time, so the next check succeeds.
package extract
