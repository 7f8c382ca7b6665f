// Package metadata reads installed-distribution manifests from the module
// namespace.
//
// Manifests (*.dist-info/METADATA and *.egg-info/PKG-INFO) are read
// straight from archive entries and are never extracted. Path entries that
// cannot be listed and manifests that cannot be read are logged and
// skipped, so one broken entry does not hide the others.
package metadata
