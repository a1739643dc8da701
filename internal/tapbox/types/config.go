package types

import "time"

// DeviceConfig is the device-wide settings document (config.json).
type DeviceConfig struct {
	DeviceName      string           `json:"deviceName" yaml:"deviceName"`
	LEDBrightness   int              `json:"ledBrightness" yaml:"ledBrightness"`
	Mode            int              `json:"mode" yaml:"mode"`
	HotspotPassword string           `json:"hotspotPassword" yaml:"hotspotPassword"`
	Light           LightConfig      `json:"light" yaml:"light"`
	Sound           SoundConfig      `json:"sound" yaml:"sound"`
	WiFi            WiFiConfig       `json:"wifi" yaml:"wifi"`
	Server          ServerConfig     `json:"server" yaml:"server"`
	Uplink          UplinkConfig     `json:"uplink" yaml:"uplink"`
	IoT             IoTConfig        `json:"iot" yaml:"iot"`
	Management      ManagementConfig `json:"management" yaml:"management"`
}

type LightConfig struct {
	KnownDefaultColor    RGB       `json:"knownDefaultColor" yaml:"knownDefaultColor"`
	UnknownDefaultColor  RGB       `json:"unknownDefaultColor" yaml:"unknownDefaultColor"`
	KnownCardAnimation   Animation `json:"knownCardAnimation" yaml:"knownCardAnimation"`
	UnknownCardAnimation Animation `json:"unknownCardAnimation" yaml:"unknownCardAnimation"`
	LightDurationMs      int       `json:"lightDuration" yaml:"lightDuration"`
	NumberOfBlinks       int       `json:"numberOfBlinks" yaml:"numberOfBlinks"`
}

func (l LightConfig) Duration() time.Duration {
	return time.Duration(l.LightDurationMs) * time.Millisecond
}

type SoundConfig struct {
	TapDetection bool `json:"tapDetection" yaml:"tapDetection"`
	Volume       int  `json:"volume" yaml:"volume"`
	OnStatus     bool `json:"onStatus" yaml:"onStatus"`
	DurationMs   int  `json:"duration" yaml:"duration"`
}

type WiFiConfig struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"password" yaml:"password"`
}

type ServerConfig struct {
	Address          string `json:"address" yaml:"address"`
	Port             int    `json:"port" yaml:"port"`
	HeartbeatSeconds int    `json:"heartbeatSeconds" yaml:"heartbeatSeconds"`
}

type UplinkConfig struct {
	Enable bool   `json:"enable" yaml:"enable"`
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`
	Topic  string `json:"topic" yaml:"topic"`
	User   string `json:"user" yaml:"user"`
	Pass   string `json:"pass" yaml:"pass"`
}

type IoTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Mode    string `json:"mode" yaml:"mode"`
}

type ManagementConfig struct {
	RawEditor bool `json:"rawEditor" yaml:"rawEditor"`
	Upload    bool `json:"upload" yaml:"upload"`
}

// DefaultDeviceConfig returns the value every field falls back to.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		DeviceName:    "TapBox",
		LEDBrightness: 255,
		Light: LightConfig{
			KnownDefaultColor:    RGB{G: 0xFF},
			UnknownDefaultColor:  RGB{R: 0xFF, B: 0xFF},
			KnownCardAnimation:   AnimationSolid,
			UnknownCardAnimation: AnimationBlink,
			LightDurationMs:      1000,
			NumberOfBlinks:       2,
		},
		Sound: SoundConfig{
			TapDetection: true,
			Volume:       50,
			DurationMs:   50,
		},
		Server: ServerConfig{
			Port:             8080,
			HeartbeatSeconds: 60,
		},
		Uplink: UplinkConfig{
			Port:  4222,
			Topic: "tapbox.activity",
		},
		IoT: IoTConfig{Mode: "none"},
		Management: ManagementConfig{
			RawEditor: true,
			Upload:    true,
		},
	}
}
