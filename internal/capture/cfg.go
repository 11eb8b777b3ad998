package capture

// ConfigOptions lists the capture devices and the default selection.
type ConfigOptions struct {
	// Sources are device specs accepted by ParseSource.
	Sources       []string
	VideoDeviceID string
	AudioDeviceID string
}
