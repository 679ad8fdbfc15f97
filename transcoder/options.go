package transcoder

import "encoding/json"

// ResizeSpec is the target dimensions for a scale filter.
type ResizeSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Options is the recognized transcode option set. Unrecognized keys in
// the incoming JSON are ignored.
type Options struct {
	Resize  *ResizeSpec `json:"resize,omitempty"`
	Bitrate string      `json:"bitrate,omitempty"`
	Codec   string      `json:"codec,omitempty"`
}

// ParseOptions decodes the options query parameter. An empty string is
// valid and yields zero options.
func ParseOptions(s string) (Options, error) {
	var opts Options
	if s == "" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(s), &opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}
