// Package assets keeps one shared collection per (bundle, asset category) in
// step with the files on disk.
//
// The Watcher turns fsnotify events for each category directory into add,
// change and unlink events. The Registry consumes them on a single goroutine:
// it digests files on a bounded set of workers, holds back the initial
// directory scan until every file has a digest so subscribers receive it as
// one push per category, and afterwards applies each event to the category
// collection as it resolves. The Gateway serves uploads, deletes and
// downloads; it only touches the filesystem and lets the Watcher observe the
// result, so uploaded files and externally copied files take the same path.
package assets
