package camera

// Preset names for common resolutions
const (
	PresetNative = "native"
	Preset480p   = "480p"
	Preset720p   = "720p"
	Preset1080p  = "1080p"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetNative: DefaultConfig(),
		Preset480p:   withSize(640, 480),
		Preset720p:   withSize(1280, 720),
		Preset1080p:  withSize(1920, 1080),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetNative, Preset480p, Preset720p, Preset1080p}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

func withSize(w, h int) Config {
	cfg := DefaultConfig()
	cfg.Width = w
	cfg.Height = h
	return cfg
}
