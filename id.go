package taskq

import "github.com/quorumchat/taskq/id"

// ID is the primary identifier type for taskq entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
