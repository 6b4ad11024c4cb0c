// Package catalog loads the two read-only inputs every run depends on: the
// status-code catalog (statusCodes.json) and the admin comments file
// (comments.json). Both are required; a missing file is a fatal condition
// surfaced before any entity is processed.
//
// The catalog is immutable once loaded and is passed explicitly into the
// components that resolve codes, so alternate catalogs can be injected in
// tests.
package catalog
