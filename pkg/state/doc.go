// Package state persists configuration layers outside the process and turns
// them back into stores.
//
// A Store loads and saves one Tree per Ref. A Ref pairs a configuration
// domain (for example "options") with a scope; Ref.Identifier gives the
// storage key, such as "user/42/options" or "site/options".
//
// Resolver stacks the stored layers over the embedded defaults:
//
//	Store -> Resolver.Resolve -> opts.TreeSource per scope -> *opts.Options
//
// Meta.SnapshotID becomes the layer's snapshot ID, so it is visible through
// Options.ResolveWithTrace and schema scope listings.
package state
