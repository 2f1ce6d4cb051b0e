package hilink

import (
	"context"
	"encoding/xml"
	"fmt"
)

// DeviceInformation is the device/information response.
type DeviceInformation struct {
	XMLName         xml.Name `xml:"response"`
	DeviceName      string   `xml:"DeviceName"`
	SerialNumber    string   `xml:"SerialNumber"`
	IMEI            string   `xml:"Imei"`
	HardwareVersion string   `xml:"HardwareVersion"`
	SoftwareVersion string   `xml:"SoftwareVersion"`
	WebUIVersion    string   `xml:"WebUIVersion"`
	MacAddress1     string   `xml:"MacAddress1"`
	MacAddress2     string   `xml:"MacAddress2"`
	ProductFamily   string   `xml:"ProductFamily"`
	Classify        string   `xml:"Classify"`
}

// Signal is the device/signal response with radio measurements. Values are
// reported as the firmware formats them (units embedded, e.g. "-79dBm").
type Signal struct {
	XMLName xml.Name `xml:"response"`
	RSSI    string   `xml:"rssi"`
	RSRP    string   `xml:"rsrp"`
	RSRQ    string   `xml:"rsrq"`
	SINR    string   `xml:"sinr"`
	Cell    string   `xml:"cell_id"`
	PCI     string   `xml:"pci"`
	Mode    string   `xml:"mode"`
}

// MonitoringStatus is the monitoring/status response.
type MonitoringStatus struct {
	XMLName              xml.Name `xml:"response"`
	ConnectionStatus     int      `xml:"ConnectionStatus"`
	SignalStrength       int      `xml:"SignalIcon"`
	CurrentNetworkType   int      `xml:"CurrentNetworkType"`
	PrimaryDNS           string   `xml:"PrimaryDns"`
	SecondaryDNS         string   `xml:"SecondaryDns"`
	CurrentWifiUser      int      `xml:"CurrentWifiUser"`
	BatteryPercent       string   `xml:"BatteryPercent"`
	SimStatus            int      `xml:"SimStatus"`
	WanIPAddress         string   `xml:"WanIPAddress"`
	WifiConnectionStatus string   `xml:"WifiConnectionStatus"`
}

// Device exposes the read-only device endpoints and the reboot control.
// These are plain passthroughs with no decision logic; most of them require
// an authenticated session on stock firmware.
type Device struct {
	session *Session
}

// NewDevice creates a Device service on an established session.
func NewDevice(session *Session) *Device {
	return &Device{session: session}
}

// Information fetches device identity and firmware details.
func (d *Device) Information(ctx context.Context) (*DeviceInformation, error) {
	var info DeviceInformation
	if err := d.session.Get(ctx, "device/information", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Signal fetches current radio signal measurements.
func (d *Device) Signal(ctx context.Context) (*Signal, error) {
	var signal Signal
	if err := d.session.Get(ctx, "device/signal", &signal); err != nil {
		return nil, err
	}
	return &signal, nil
}

// Status fetches the connection monitoring status.
func (d *Device) Status(ctx context.Context) (*MonitoringStatus, error) {
	var status MonitoringStatus
	if err := d.session.Get(ctx, "monitoring/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// controlRequest is the device/control payload; Control 1 reboots.
type controlRequest struct {
	XMLName xml.Name `xml:"request"`
	Control int      `xml:"Control"`
}

// Reboot asks the device to restart. The connection drops shortly after the
// device acknowledges, so callers should not reuse the session.
func (d *Device) Reboot(ctx context.Context) error {
	status, err := d.session.PostStatus(ctx, "device/control", &controlRequest{Control: 1}, false)
	if err != nil {
		return err
	}
	if status != StatusOK {
		return fmt.Errorf("reboot rejected with status %q", status)
	}
	return nil
}
