package main

import "testing"

func testRegistry(t *testing.T) *AssetRegistry {
	t.Helper()
	return NewAssetRegistry(seedDevices())
}

func TestRegistryLookups(t *testing.T) {
	r := testRegistry(t)

	if _, ok := r.GetByID("d1"); !ok {
		t.Fatalf("expected d1 by id")
	}
	if dev, ok := r.GetByIP("10.30.0.20"); !ok || dev.ID != "d7" {
		t.Fatalf("expected d7 by IP, got %+v ok=%v", dev, ok)
	}
	if dev, ok := r.GetByMac("AA:10:20:00:00:01"); !ok || dev.ID != "d1" {
		t.Fatalf("expected d1 by MAC case-insensitively, got %+v ok=%v", dev, ok)
	}
	if _, ok := r.GetByID("nope"); ok {
		t.Fatalf("unknown id should miss")
	}
}

func TestRegistryOrderIsRegistrationOrder(t *testing.T) {
	r := testRegistry(t)
	r.Register(Device{ID: "d99", Name: "Late Arrival"})

	all := r.GetAll()
	if all[0].ID != "d1" {
		t.Fatalf("expected d1 first, got %s", all[0].ID)
	}
	if all[len(all)-1].ID != "d99" {
		t.Fatalf("expected d99 last, got %s", all[len(all)-1].ID)
	}

	// Re-registering must not duplicate or reorder.
	r.Register(Device{ID: "d1", Name: "Core Switch A v2"})
	again := r.GetAll()
	if len(again) != len(all) {
		t.Fatalf("re-register changed device count: %d vs %d", len(again), len(all))
	}
	if again[0].ID != "d1" || again[0].Name != "Core Switch A v2" {
		t.Fatalf("re-register did not replace in place: %+v", again[0])
	}
}

func TestRegistryEvictsStaleAddressIndexes(t *testing.T) {
	r := testRegistry(t)

	r.Register(Device{ID: "d1", Name: "Core Switch A", IP: "10.20.9.9", Mac: "aa:10:20:00:00:ff"})

	if _, ok := r.GetByIP("10.20.0.2"); ok {
		t.Fatalf("stale IP index entry survived re-registration")
	}
	if _, ok := r.GetByMac("aa:10:20:00:00:01"); ok {
		t.Fatalf("stale MAC index entry survived re-registration")
	}
	if dev, ok := r.GetByIP("10.20.9.9"); !ok || dev.ID != "d1" {
		t.Fatalf("new IP not indexed")
	}
	if dev, ok := r.GetByMac("aa:10:20:00:00:ff"); !ok || dev.ID != "d1" {
		t.Fatalf("new MAC not indexed")
	}
}

func TestResolvePriorityIDBeatsMac(t *testing.T) {
	r := testRegistry(t)

	// Known identifier plus a MAC belonging to a different device: the
	// identifier wins.
	dev := r.Resolve(RawTelemetryRecord{DeviceID: "d1", Mac: "aa:10:30:00:00:07"})
	if dev == nil || dev.ID != "d1" {
		t.Fatalf("expected identifier to beat MAC, got %+v", dev)
	}
}

func TestResolveFallsThroughUnknownHints(t *testing.T) {
	r := testRegistry(t)

	// Unknown id does not short-circuit: resolution falls to the MAC.
	dev := r.Resolve(RawTelemetryRecord{DeviceID: "ghost", Mac: "aa:10:30:00:00:07"})
	if dev == nil || dev.ID != "d7" {
		t.Fatalf("expected MAC fall-through, got %+v", dev)
	}

	// MAC also unknown: falls to IP.
	dev = r.Resolve(RawTelemetryRecord{DeviceID: "ghost", Mac: "00:00:00:00:00:00", IP: "10.30.0.11"})
	if dev == nil || dev.ID != "d5" {
		t.Fatalf("expected IP fall-through, got %+v", dev)
	}
}

func TestResolveUnresolved(t *testing.T) {
	r := testRegistry(t)
	if dev := r.Resolve(RawTelemetryRecord{DeviceID: "ghost", Mac: "de:ad:be:ef:00:00", IP: "192.0.2.1"}); dev != nil {
		t.Fatalf("expected unresolved, got %+v", dev)
	}
	if dev := r.Resolve(RawTelemetryRecord{}); dev != nil {
		t.Fatalf("record with no hints should not resolve, got %+v", dev)
	}
}
