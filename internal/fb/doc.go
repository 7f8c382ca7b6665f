// Package fb holds FlatBuffers accessors and builders for the snapshot
// schema in schema/snapshot.fbs. They follow the layout of flatc's Go
// output and must be kept in step with the schema by hand.
package fb
