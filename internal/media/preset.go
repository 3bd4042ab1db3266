package media

import (
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Preset bundles the encoder settings for one output quality level.
type Preset struct {
	// Name is the identifier clients use to select the preset.
	Name string
	// VideoCodec is the ffmpeg video encoder (always libx264 for mp4 output).
	VideoCodec string
	// CRF is the constant rate factor. 0 is lossless, higher is smaller and worse.
	CRF int
	// Speed is the x264 speed/compression tradeoff (veryslow..ultrafast).
	Speed string
	// VideoBitrate caps the video bitrate. Empty means CRF-only rate control.
	VideoBitrate string
	// AudioCodec is the ffmpeg audio encoder.
	AudioCodec string
	// AudioBitrate is the target audio bitrate.
	AudioBitrate string
}

// DefaultPresetName is used when a client does not select a preset or selects
// an unknown one.
const DefaultPresetName = "high"

var presets = map[string]Preset{
	"lossless": {
		Name:         "lossless",
		VideoCodec:   "libx264",
		CRF:          0,
		Speed:        "veryslow",
		AudioCodec:   "aac",
		AudioBitrate: "320k",
	},
	"high": {
		Name:         "high",
		VideoCodec:   "libx264",
		CRF:          18,
		Speed:        "slow",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	},
	"medium": {
		Name:         "medium",
		VideoCodec:   "libx264",
		CRF:          23,
		Speed:        "medium",
		VideoBitrate: "5000k",
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	},
	"low": {
		Name:         "low",
		VideoCodec:   "libx264",
		CRF:          28,
		Speed:        "fast",
		VideoBitrate: "2000k",
		AudioCodec:   "aac",
		AudioBitrate: "96k",
	},
}

// LookupPreset returns the preset for name. Unknown names fall back to the
// "high" preset and report found=false so callers can log the substitution.
func LookupPreset(name string) (p Preset, found bool) {
	if p, ok := presets[name]; ok {
		return p, true
	}
	return presets[DefaultPresetName], false
}

// PresetNames lists the valid preset identifiers.
func PresetNames() []string {
	return []string{"lossless", "high", "medium", "low"}
}

// OutputArgs builds the ffmpeg output arguments for this preset. Audio
// arguments are only emitted when the input carries an audio stream;
// otherwise the output is muted explicitly so ffmpeg does not invent one.
func (p Preset) OutputArgs(hasAudio bool) ffmpeg.KwArgs {
	kw := ffmpeg.KwArgs{
		"c:v":     p.VideoCodec,
		"crf":     p.CRF,
		"preset":  p.Speed,
		"pix_fmt": "yuv420p",
	}
	if p.VideoBitrate != "" {
		kw["b:v"] = p.VideoBitrate
	}
	if hasAudio {
		kw["c:a"] = p.AudioCodec
		kw["b:a"] = p.AudioBitrate
	} else {
		kw["an"] = ""
	}
	return kw
}
