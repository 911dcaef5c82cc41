package main

import "strings"

// AssetRegistry is the authoritative in-memory device catalog, indexed by
// identifier, IP and MAC. It carries no lock of its own: NetworkState owns it
// and serializes access.
type AssetRegistry struct {
	devices map[string]*Device
	order   []string
	byIP    map[string]string
	byMac   map[string]string
}

func NewAssetRegistry(seed []Device) *AssetRegistry {
	r := &AssetRegistry{
		devices: map[string]*Device{},
		byIP:    map[string]string{},
		byMac:   map[string]string{},
	}
	for _, dev := range seed {
		r.Register(dev)
	}
	return r
}

func normalizeKeyToken(raw string) string {
	out := strings.ToLower(strings.TrimSpace(raw))
	out = strings.ReplaceAll(out, " ", "")
	return out
}

// Register inserts or replaces the device at its identifier. Stale IP/MAC
// index entries owned by the same identifier are evicted before re-indexing,
// so an address change never leaves a dangling lookup.
func (r *AssetRegistry) Register(dev Device) {
	if existing, ok := r.devices[dev.ID]; ok {
		if key := normalizeKeyToken(existing.IP); key != "" && r.byIP[key] == dev.ID {
			delete(r.byIP, key)
		}
		if key := normalizeKeyToken(existing.Mac); key != "" && r.byMac[key] == dev.ID {
			delete(r.byMac, key)
		}
	} else {
		r.order = append(r.order, dev.ID)
	}

	stored := dev.Clone()
	r.devices[dev.ID] = &stored
	if key := normalizeKeyToken(dev.IP); key != "" {
		r.byIP[key] = dev.ID
	}
	if key := normalizeKeyToken(dev.Mac); key != "" {
		r.byMac[key] = dev.ID
	}
}

func (r *AssetRegistry) GetByID(id string) (*Device, bool) {
	dev, ok := r.devices[id]
	return dev, ok
}

func (r *AssetRegistry) GetByIP(ip string) (*Device, bool) {
	id, ok := r.byIP[normalizeKeyToken(ip)]
	if !ok {
		return nil, false
	}
	return r.GetByID(id)
}

func (r *AssetRegistry) GetByMac(mac string) (*Device, bool) {
	id, ok := r.byMac[normalizeKeyToken(mac)]
	if !ok {
		return nil, false
	}
	return r.GetByID(id)
}

// GetAll returns device snapshots in registration order.
func (r *AssetRegistry) GetAll() []Device {
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		if dev, ok := r.devices[id]; ok {
			out = append(out, dev.Clone())
		}
	}
	return out
}

// Resolve maps a telemetry record's identifying hints to a known device.
// Priority: explicit identifier, then MAC, then IP. A provided but unknown
// hint falls through to the next one; nil means unresolved.
func (r *AssetRegistry) Resolve(rec RawTelemetryRecord) *Device {
	if id := strings.TrimSpace(rec.DeviceID); id != "" {
		if dev, ok := r.GetByID(id); ok {
			return dev
		}
	}
	if rec.Mac != "" {
		if dev, ok := r.GetByMac(rec.Mac); ok {
			return dev
		}
	}
	if rec.IP != "" {
		if dev, ok := r.GetByIP(rec.IP); ok {
			return dev
		}
	}
	return nil
}
