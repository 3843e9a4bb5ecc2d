package innertube

import "net/http"

// ClientProfile identifies one platform client the player endpoint accepts.
type ClientProfile struct {
	// ID is the registry alias used for configuration and diagnostics
	// (e.g. "android"), distinct from the wire clientName ("ANDROID").
	ID            string
	Name          string
	Version       string
	APIKey        string
	UserAgent     string
	ContextNameID int
	Host          string
	Headers       http.Header

	// AndroidSDKVersion is sent for Android-family clients only.
	AndroidSDKVersion int
}

type Registry interface {
	Get(name string) (ClientProfile, bool)
	All() []ClientProfile
}
