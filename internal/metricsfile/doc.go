// Package metricsfile writes each tick's results as a Prometheus text
// exposition file, the textfile-collector convention for batch jobs. One
// gauge family per dimension, one sample per entity, written atomically so
// a scrape never sees a partial file.
package metricsfile
