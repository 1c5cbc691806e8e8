// Package state persists one configuration document per scope and turns the
// stored documents back into merged hierconf managers.
//
// A Store only loads and saves the document behind a Ref. Resolver reads the
// documents for a set of scopes, builds a hierconf.Stack from them and merges
// it, so stronger scopes win. The snapshot ID a Store reports travels onto the
// layer, where Manager.Trace and schema scopes expose it.
//
// Ref.Identifier gives a stable storage key for the system, tenant, org, team
// and user scopes:
//
//	system/<domain>
//	<scope>/<scope id>/<domain>
package state
