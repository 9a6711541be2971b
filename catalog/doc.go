// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog stores the global capability catalog and the person
// registry in SQLite.
//
// The catalog is the authority on which capabilities exist. The router
// checks its directory against it after the startup collection: a
// directory capability missing from the catalog is an integrity error,
// a catalog capability no room claims is a coverage error. Both are
// reported, neither stops the process.
//
// Persons are looked up at login. Credential establishment is not this
// package's business; it stores what it is given and answers lookups.
package catalog
