package innertube

import (
	"encoding/json"

	"github.com/google/uuid"
)

type PlayerRequest struct {
	Context         Context         `json:"context"`
	VideoID         string          `json:"videoId"`
	CPN             string          `json:"cpn,omitempty"`
	ContentCheckOk  bool            `json:"contentCheckOk,omitempty"`
	RacyCheckOk     bool            `json:"racyCheckOk,omitempty"`
	PlaybackContext PlaybackContext `json:"playbackContext,omitempty"`
}

type Context struct {
	Client  ClientInfo     `json:"client"`
	Request RequestContext `json:"request,omitempty"`
}

type ClientInfo struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	DeviceMake        string `json:"deviceMake,omitempty"`
	DeviceModel       string `json:"deviceModel,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
	OsName            string `json:"osName,omitempty"`
	OsVersion         string `json:"osVersion,omitempty"`
	AcceptLanguage    string `json:"hl"`
	TimeZone          string `json:"timeZone"`
	UtcOffsetMinutes  int    `json:"utcOffsetMinutes"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
}

type RequestContext struct {
	UseSsl bool `json:"useSsl"`
}

type PlaybackContext struct {
	ContentPlaybackContext ContentPlaybackContext `json:"contentPlaybackContext"`
}

type ContentPlaybackContext struct {
	Html5Preference string `json:"html5Preference"`
}

// NewPlayerRequest builds a player request for one profile and video ID. The
// CPN playback nonce is generated per request the way real clients do.
func NewPlayerRequest(profile ClientProfile, videoID string) *PlayerRequest {
	clientInfo := ClientInfo{
		ClientName:       profile.Name,
		ClientVersion:    profile.Version,
		UserAgent:        profile.UserAgent,
		AcceptLanguage:   "en",
		TimeZone:         "UTC",
		UtcOffsetMinutes: 0,
	}
	applyClientContextDefaults(&clientInfo, profile)

	return &PlayerRequest{
		VideoID:        videoID,
		CPN:            newPlaybackNonce(),
		RacyCheckOk:    true,
		ContentCheckOk: true,
		Context: Context{
			Client: clientInfo,
			Request: RequestContext{
				UseSsl: true,
			},
		},
		PlaybackContext: PlaybackContext{
			ContentPlaybackContext: ContentPlaybackContext{
				Html5Preference: "HTML5_PREF_WANTS",
			},
		},
	}
}

// MarshalRequest serializes a player request body.
func MarshalRequest(r *PlayerRequest) ([]byte, error) {
	return json.Marshal(r)
}

// newPlaybackNonce generates a 16-character CPN from random UUID bytes using
// the platform's URL-safe alphabet.
func newPlaybackNonce() string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	id := uuid.New()
	nonce := make([]byte, 16)
	for i := range nonce {
		nonce[i] = alphabet[int(id[i])&63]
	}
	return string(nonce)
}

func applyClientContextDefaults(client *ClientInfo, profile ClientProfile) {
	switch profile.Name {
	case "ANDROID":
		client.OsName = "Android"
		client.OsVersion = "11"
		client.DeviceMake = "Google"
		client.DeviceModel = "Pixel 5"
		client.AndroidSdkVersion = profile.AndroidSDKVersion
	case "IOS":
		client.OsName = "iOS"
		client.OsVersion = "18.3.2.22D82"
		client.DeviceMake = "Apple"
		client.DeviceModel = "iPhone16,2"
	default:
		client.OsName = "Windows"
		client.OsVersion = "10.0"
		client.DeviceMake = "Microsoft"
		client.DeviceModel = "Desktop"
	}
}
