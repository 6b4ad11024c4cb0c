// Package rss renders one RSS 2.0 feed document per entity from its event
// history. Channel and item templates are text/template files; built-in
// templates are used when none are configured. Items are emitted newest
// first, each carrying the status message for its tick and the
// HTML-escaped admin comments block.
package rss
