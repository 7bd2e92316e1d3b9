package anonymize

import (
	"crypto/sha256"
	"strings"

	"anon-sync/feature/customers/models"
)

// TokenLength is the length of every anonymized token.
const TokenLength = 8

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// rejectFrom is the largest multiple of len(alphabet) not above 256. Digest
// bytes at or above it are skipped so every character is equally likely.
const rejectFrom = 256 - 256%len(alphabet)

// Token derives an 8 character alphanumeric token from seed. The same seed
// always yields the same token, so no mapping table is needed to reproduce
// earlier output. The empty string is a valid seed.
//
// Characters are taken from the SHA-256 digest of seed, rehashing the
// digest whenever its bytes run out. The output depends on SHA-256 alone
// and must not change between releases.
func Token(seed string) string {
	sum := sha256.Sum256([]byte(seed))

	b := make([]byte, 0, TokenLength)
	for {
		for _, v := range sum {
			if int(v) >= rejectFrom {
				continue
			}
			b = append(b, alphabet[int(v)%len(alphabet)])
			if len(b) == TokenLength {
				return string(b)
			}
		}
		sum = sha256.Sum256(sum[:])
	}
}

// Email replaces the local part of an address with its token and keeps the
// domain. A value without "@" is treated as a bare local part.
func Email(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return Token(email)
	}
	return Token(local) + "@" + domain
}

// Customer returns the anonymized counterpart of c. ID, city, state,
// country and createdAt are copied verbatim; c itself is not modified.
//
// The first name seeds the first name, last name and both address lines, so
// two customers sharing a first name get identical tokens in all four fields.
func Customer(c models.Customer) models.Customer {
	out := c

	nameToken := Token(c.FirstName)
	out.FirstName = nameToken
	out.LastName = nameToken
	out.Email = Email(c.Email)
	out.Address.Line1 = nameToken
	out.Address.Line2 = nameToken
	out.Address.Postcode = Token(c.Address.Postcode)

	return out
}

// Customers anonymizes every element of cs into a new slice.
func Customers(cs []models.Customer) []models.Customer {
	out := make([]models.Customer, len(cs))
	for i, c := range cs {
		out[i] = Customer(c)
	}
	return out
}
