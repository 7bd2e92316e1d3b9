// Package anonymize turns customer records into anonymized copies.
//
// Every personal value is replaced by an 8 character token drawn from
// [a-zA-Z0-9]. Tokens are derived from a ChaCha8 generator keyed with the
// SHA-256 of a seed string, so re-deriving a token always reproduces the
// earlier output and no mapping table has to be stored.
package anonymize
