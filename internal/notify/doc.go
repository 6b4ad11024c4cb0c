// Package notify delivers webhook notifications when an entity's public
// status message changes. Delivery is synchronous within the tick (a batch
// process cannot hand work to goroutines it will not wait for), with a
// per-entity cooldown per target. Failures are logged and never propagate.
package notify
