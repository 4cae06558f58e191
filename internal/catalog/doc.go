// Package catalog defines the metadata record model and a disk cache
// for search results.
//
// The catalog search itself (query protocol, pagination, retries) is
// an external collaborator behind the Searcher interface. This package
// only fixes the shape of what a search returns and keeps the two
// result documents (collections.json, granules.json) cached under the
// job namespace so repeated runs of a multi-hour mirror never repeat
// the query. Delete the cached documents to force a refresh.
package catalog
