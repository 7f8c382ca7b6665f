// Package assetimport loads code and data for an embedded language runtime
// from read-only zip archives bundled with a host application.
//
// Content is used in place wherever possible. Only what cannot be consumed
// from an archive is materialized into a writable cache directory: native
// libraries, plain resource files and aliases. Every materialized file
// carries its entry's stored mtime, so later runs skip files that have not
// changed.
//
// The root package wires the components together from a [Config]. The
// components are usable on their own:
//
//   - [archive]: zip central-directory indexes and raw entry reads
//   - [extract]: the extraction cache with change detection
//   - [codecache]: compiled-code caches validated by header only
//   - [resolve]: module resolution over mounted roots and directories
//   - [stage]: bootstrap staging with stray-file cleanup
//   - [metadata]: installed-distribution manifests
//
// # Quick Start
//
//	rt, err := assetimport.New(assetimport.Config{
//	    CacheDir: "/data/app/files/assetimport",
//	    Roots: []assetimport.RootConfig{
//	        {ID: "stdlib", Path: "stdlib.zip", Protected: true},
//	        {ID: "app", Path: "app.zip"},
//	    },
//	}, compiler)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	if _, err := rt.Start(ctx); err != nil {
//	    return err
//	}
//	mod, err := rt.Import("app.main")
package assetimport
