package domain

import "time"

// Device is a door controller that polls for dispatch work on behalf of one
// or more areas. Devices cannot hold inbound connections; identity comes from
// an API token resolved against the device registry.
type Device struct {
	ID         int64
	DeviceID   string
	Name       string
	Enabled    bool
	Areas      []string
	LastSeenAt time.Time
	LastIP     string
	Notes      string
}

// ServesArea reports whether the device is allowed to claim jobs for area.
func (d Device) ServesArea(area string) bool {
	for _, a := range d.Areas {
		if a == area {
			return true
		}
	}
	return false
}

// DoorLogEntry is one append-only audit record of a door interaction.
// Context is free-form structured detail; it is JSON-rendered at storage.
type DoorLogEntry struct {
	ID        int64
	MemberID  int64
	Area      string
	Action    string
	Result    string
	IP        string
	UserAgent string
	Message   string
	Context   map[string]any
	CreatedAt time.Time
}
