package common

// ServiceName is the value of the "serviceName" field in every envelope
// exchanged over the peer transport.
const ServiceName = "moments"

// PeerIDHeaderName is the gRPC metadata key carrying the caller identity
// on relay requests.
const PeerIDHeaderName = "x-peer-id"

// DatabaseFile is the name of the SQLite file inside the service directory.
const DatabaseFile = "moments.db"

// DefaultPageSize caps read listings and push batches.
const DefaultPageSize = 50
