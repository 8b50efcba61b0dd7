package redis

// All keys are prefixed with "goalpace:" to avoid collisions.
const keyPrefix = "goalpace:"

// goalKey returns the key for a goal document: goalpace:goal:{id}
func goalKey(id string) string { return keyPrefix + "goal:" + id }

// goalIndexKey is the Sorted Set of goal IDs scored by creation time.
const goalIndexKey = keyPrefix + "goals"

// snapshotsKey returns the Sorted Set holding a goal's snapshots:
// goalpace:snapshots:{goalID}
func snapshotsKey(goalID string) string { return keyPrefix + "snapshots:" + goalID }

// lockKey returns the Hash key for a named job lock: goalpace:lock:{job}
func lockKey(jobName string) string { return keyPrefix + "lock:" + jobName }
