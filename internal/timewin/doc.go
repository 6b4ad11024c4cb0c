// Package timewin implements the time-exclusion windows an entity can
// configure: daily clock ranges, whole weekdays, and specific calendar
// dates. A window suppresses response-time persistence for observations
// taken inside it; the read side is unaffected.
package timewin
