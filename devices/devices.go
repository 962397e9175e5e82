package devices

import (
	"github.com/jrsteele09/go-flume-client/timestamp"
)

// Type identifies the kind of Flume hardware.
type Type int

const (
	TypeBridge Type = 1
	TypeSensor Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeBridge:
		return "bridge"
	case TypeSensor:
		return "sensor"
	}
	return "unknown"
}

// Device is a Flume bridge or water sensor as reported by the API.
type Device struct {
	ID           string         `json:"id"`
	Type         Type           `json:"type"`
	LocationID   int64          `json:"location_id,omitempty"`
	UserID       int64          `json:"user_id,omitempty"`
	BridgeID     string         `json:"bridge_id,omitempty"`
	Oriented     bool           `json:"oriented"`
	LastSeen     timestamp.Time `json:"last_seen"`
	Connected    bool           `json:"connected"`
	BatteryLevel string         `json:"battery_level,omitempty"`
	Product      string         `json:"product,omitempty"`
	Location     *Location      `json:"location,omitempty"` // only when requested with location=true
}

// IsSensor reports whether the device measures flow.
func (d Device) IsSensor() bool {
	return d.Type == TypeSensor
}

// Location is a site that groups devices.
type Location struct {
	ID              int64  `json:"id"`
	UserID          int64  `json:"user_id,omitempty"`
	Name            string `json:"name"`
	PrimaryLocation bool   `json:"primary_location"`
	Address         string `json:"address,omitempty"`
	Address2        string `json:"address_2,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	Country         string `json:"country,omitempty"`
	TZ              string `json:"tz"`
	Installation    string `json:"installation,omitempty"`
	BuildingType    string `json:"building_type,omitempty"`
}
