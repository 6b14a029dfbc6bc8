package redis

// Redis key naming conventions for taskq data.
// All keys are prefixed with "taskq:" to avoid collisions.

const keyPrefix = "taskq:"

// jobKey returns the Hash key for a job entity: taskq:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// progressKey returns the List key for a job's progress history:
// taskq:progress:{id}
func progressKey(id string) string { return keyPrefix + "progress:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"
