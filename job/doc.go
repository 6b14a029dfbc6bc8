// Package job defines the Job value object, its lifecycle states, the
// progress-update history, and the persistence contract consumed by the
// recovery coordinator and the persistence mirror.
//
// A Job describes one unit of externally executed work. The dispatcher
// owns the authoritative in-memory table of jobs; the work itself runs
// outside the scheduler and reports progress and a terminal outcome back
// through the dispatcher's mutation surface.
//
// State machine:
//
//	pending --(promoted, capacity available)--> running
//	pending --(Cancel)--------------------> cancelled [terminal]
//	running --(Complete)------------------> completed [terminal]
//	running --(Fail)----------------------> failed    [terminal]
//	running --(Cancel)--------------------> cancelled [terminal]
//
// No transition leaves a terminal state.
package job
