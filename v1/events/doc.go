// Package events provides the pub/sub bus used to announce committed
// transfers and deadlock alerts. The in-memory bus is the default and is
// suitable for single-process use and tests; NATS and Kafka backends carry
// the same events across processes.
package events
