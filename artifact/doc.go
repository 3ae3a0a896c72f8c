// Package artifact persists trained pipelines.
//
// A Store is a flat key/value store with slash-separated keys. Two
// backends are provided: FileStore writes one file per key below a root
// directory, and BadgerStore uses an embedded badger database.
//
// SavePipeline and LoadBlueprint map a dag.Blueprint onto keys:
//
//	pipelines/<name>/definition     resolved definition, JSON
//	pipelines/<name>/state/<node>   Snapshotter state blob
package artifact
