// Package upload runs the attachment upload worker pool.
//
// Workers claim the highest-priority pending job from the queue store with an
// atomic compare-and-swap, transfer it, record the attachment on its note and
// remove the job. Failed transfers move the job to error, wait out an
// exponential backoff that is cut short when the job is removed, and then put
// it back to pending or park it in failed once the attempt budget is spent.
package upload
