// Package taskpool runs transfer jobs with a bounded degree of parallelism.
// Each submitted task gets a handle that can be awaited or cancelled; the
// pool itself never blocks a caller longer than its context allows.
package taskpool
