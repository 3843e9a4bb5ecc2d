package innertube

// PlayerResponse is the top-level response from the /player endpoint, trimmed
// to the fields the resolution pipeline consumes.
type PlayerResponse struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
}

type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (p *PlayabilityStatus) IsOK() bool {
	return p.Status == "OK"
}

type StreamingData struct {
	ExpiresInSeconds string   `json:"expiresInSeconds"`
	Formats          []Format `json:"formats"`
	AdaptiveFormats  []Format `json:"adaptiveFormats"`
}

// Format is the raw wire shape of one stream entry. Numeric fields the
// platform serializes as strings stay strings here; normalization happens in
// the formats parser.
type Format struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	AverageBitrate  int    `json:"averageBitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FPS             int    `json:"fps"`
	ContentLength   string `json:"contentLength"`
	Quality         string `json:"quality"`
	QualityLabel    string `json:"qualityLabel"`
	AudioQuality    string `json:"audioQuality"`
	AudioSampleRate string `json:"audioSampleRate"`
	AudioChannels   int    `json:"audioChannels"`
	SignatureCipher string `json:"signatureCipher"`
	Cipher          string `json:"cipher"` // legacy field name
}

type VideoDetails struct {
	VideoID          string `json:"videoId"`
	Title            string `json:"title"`
	LengthSeconds    string `json:"lengthSeconds"`
	ChannelID        string `json:"channelId"`
	ShortDescription string `json:"shortDescription"`
	ViewCount        string `json:"viewCount"`
	Author           string `json:"author"`
	IsLiveContent    bool   `json:"isLiveContent"`
}
