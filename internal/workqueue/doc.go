// Package workqueue provides bounded worker pools for executing opaque build
// and test actions in parallel.
//
// A Queue owns a fixed set of workers that pull tasks in submission order and
// push completions onto a shared result stream. Results are retrieved in
// completion order, not submission order. A fault inside a task (returned
// error or panic) is converted into a failed Result at the worker boundary;
// it never crashes the pool or the goroutine draining results.
//
// A LoadRestrictingQueue adds a second submission path for tasks whose
// resource footprint makes unrestricted co-scheduling unsafe. Restricted
// tasks take a semaphore slot before they are eligible to run, so at any
// instant the number of running restricted tasks never exceeds the configured
// restricted capacity, while total concurrency stays bounded by the worker
// count.
package workqueue
