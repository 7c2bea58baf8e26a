package client

// DeviceInfo is the device identity captured from remote_configure. Absent
// until the first remote_configure arrives; overwritten, never merged.
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SwVersion    string `json:"sw_version"`
}

// VolumeInfo is the last volume snapshot pushed by the device.
type VolumeInfo struct {
	Level uint32 `json:"level"`
	Max   uint32 `json:"max"`
	Muted bool   `json:"muted"`
}
