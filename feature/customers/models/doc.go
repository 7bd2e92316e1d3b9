// Package models defines the customer record shared by the source collection
// and the anonymized mirror.
package models
