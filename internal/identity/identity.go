// Package identity decides which peer identifiers may become the owner of a
// moments list. Peers are addressed by decentralized identifiers (did:plc:...,
// did:web:...).
package identity

import "github.com/bluesky-social/indigo/atproto/syntax"

// IsDID reports whether id is a syntactically valid DID. Only such peers are
// auto-assigned as owner.
func IsDID(id string) bool {
	_, err := syntax.ParseDID(id)
	return err == nil
}
