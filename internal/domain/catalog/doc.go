// Package catalog describes the remote book catalog and the debounced
// search-suggestion helper used by the search box.
package catalog
