// Package domain holds the core data types shared across the service:
// regions, pollen snapshots, predictions, and the provider interfaces the
// resolvers consume. Types carry no behavior beyond derivation helpers.
package domain
