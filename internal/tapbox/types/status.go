package types

// DeviceStatus is the snapshot returned by the status request.
type DeviceStatus struct {
	DeviceName       string `json:"device_name"`
	FirmwareVersion  string `json:"firmware_version"`
	IPAddress        string `json:"ip_address"`
	MACAddress       string `json:"mac_address"`
	WiFi             string `json:"wifi"`
	WiFiStrength     int    `json:"wifi_strength"`
	Time             string `json:"time"`
	UptimeSeconds    uint64 `json:"uptime_seconds"`
	UptimeHMS        string `json:"uptime_hms"`
	LightDurationMs  int    `json:"light_duration"`
	BatteryLevel     int    `json:"battery_level"`
	ServerAddress    string `json:"server_address"`
	FreeHeap         uint64 `json:"free_heap"`
	FlashSize        uint64 `json:"flash_size"`
	ActivityLogBytes int64  `json:"activity_log_bytes"`
	CardStoreBytes   int64  `json:"card_store_bytes"`
	ScanningEnabled  bool   `json:"nfc_enabled"`
}
