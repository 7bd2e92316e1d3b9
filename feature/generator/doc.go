// Package generator inserts synthetic customers into the source collection
// at a steady rate so the sync engine has a live change feed to follow.
package generator
