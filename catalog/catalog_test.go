// Copyright 2026 The Atrium Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/atrium-foundation/atrium/lib/ref"
)

func openTestCatalog(t *testing.T, seed []Capability) *Catalog {
	t.Helper()
	c, err := Open(Config{
		Path: filepath.Join(t.TempDir(), "catalog.db"),
		Seed: seed,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return c
}

func TestSeedAndList(t *testing.T) {
	echo := ref.MustParseCapabilityID("echo")
	spell := ref.MustParseCapabilityID("spell_word")
	c := openTestCatalog(t, []Capability{
		{ID: spell, Description: "spell a word aloud"},
		{ID: echo},
	})

	got, err := c.Capabilities(context.Background())
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if len(got) != 2 || got[0] != echo || got[1] != spell {
		t.Errorf("Capabilities: got %v, want [echo spell_word]", got)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	echo := ref.MustParseCapabilityID("echo")
	path := filepath.Join(t.TempDir(), "catalog.db")
	seed := []Capability{{ID: echo, Description: "first"}}

	for range 2 {
		c, err := Open(Config{Path: path, Seed: seed})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		got, err := c.Capabilities(context.Background())
		if err != nil {
			t.Fatalf("Capabilities: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("after reopen: got %d capabilities, want 1", len(got))
		}
		if err := c.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
}

func TestContains(t *testing.T) {
	echo := ref.MustParseCapabilityID("echo")
	c := openTestCatalog(t, []Capability{{ID: echo}})
	ctx := context.Background()

	found, err := c.Contains(ctx, echo)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !found {
		t.Error("seeded capability not found")
	}

	found, err = c.Contains(ctx, ref.MustParseCapabilityID("levitate"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if found {
		t.Error("unknown capability reported present")
	}
}

func TestAddCapability(t *testing.T) {
	c := openTestCatalog(t, nil)
	ctx := context.Background()
	weather := ref.MustParseCapabilityID("weather_forecast")

	if err := c.AddCapability(ctx, Capability{ID: weather}); err != nil {
		t.Fatalf("AddCapability: %v", err)
	}
	// Adding again is a no-op, not an error.
	if err := c.AddCapability(ctx, Capability{ID: weather}); err != nil {
		t.Fatalf("second AddCapability: %v", err)
	}

	found, err := c.Contains(ctx, weather)
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !found {
		t.Error("added capability not found")
	}
}

func TestPersonRegistry(t *testing.T) {
	c := openTestCatalog(t, nil)
	ctx := context.Background()

	_, found, err := c.LookupPerson(ctx, "dave")
	if err != nil {
		t.Fatalf("LookupPerson: %v", err)
	}
	if found {
		t.Error("empty registry found a person")
	}

	dave := &Person{UserName: "dave", FullName: "Dave Bowman", Secret: "x"}
	if err := c.AddPerson(ctx, dave); err != nil {
		t.Fatalf("AddPerson: %v", err)
	}
	if dave.ID == uuid.Nil {
		t.Error("AddPerson did not assign a UUID")
	}

	got, found, err := c.LookupPerson(ctx, "dave")
	if err != nil {
		t.Fatalf("LookupPerson: %v", err)
	}
	if !found {
		t.Fatal("added person not found")
	}
	if got.ID != dave.ID || got.FullName != "Dave Bowman" || got.Secret != "x" {
		t.Errorf("person mismatch: %+v", got)
	}

	// Usernames are unique.
	if err := c.AddPerson(ctx, &Person{UserName: "dave", Secret: "y"}); err == nil {
		t.Error("duplicate username accepted")
	}
}
