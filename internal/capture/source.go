package capture

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// Backend is an OpenCV capture API.
type Backend int

const (
	BackendAny Backend = iota
	BackendV4L2
	BackendDShow
	BackendMSMF
	BackendAVFoundation
	BackendFFmpeg
)

// String returns the backend name as OpenCV reports it.
func (b Backend) String() string {
	switch b {
	case BackendAny:
		return "ANY"
	case BackendV4L2:
		return "V4L2"
	case BackendDShow:
		return "DSHOW"
	case BackendMSMF:
		return "MSMF"
	case BackendAVFoundation:
		return "AVFOUNDATION"
	case BackendFFmpeg:
		return "FFMPEG"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// API returns the gocv capture API preference for the backend.
func (b Backend) API() gocv.VideoCaptureAPI {
	switch b {
	case BackendV4L2:
		return gocv.VideoCaptureV4L2
	case BackendDShow:
		return gocv.VideoCaptureDshow
	case BackendMSMF:
		return gocv.VideoCaptureMSMF
	case BackendAVFoundation:
		return gocv.VideoCaptureAVFoundation
	case BackendFFmpeg:
		return gocv.VideoCaptureFFmpeg
	default:
		return gocv.VideoCaptureAny
	}
}

// PlatformBackends returns the backend scan order for goos. The native backends
// come first; ANY is always last.
func PlatformBackends(goos string) []Backend {
	switch goos {
	case "windows":
		return []Backend{BackendMSMF, BackendDShow, BackendAny}
	case "linux":
		return []Backend{BackendV4L2, BackendAny}
	case "darwin":
		return []Backend{BackendAVFoundation, BackendAny}
	default:
		return []Backend{BackendAny}
	}
}

// SourceKind distinguishes local devices from network streams.
type SourceKind int

const (
	SourceLocal SourceKind = iota
	SourceNetwork
)

// String returns "local" or "network".
func (k SourceKind) String() string {
	if k == SourceNetwork {
		return "network"
	}
	return "local"
}

// MarshalText encodes the kind by name.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Source identifies a video input.
type Source struct {
	Kind    SourceKind `json:"kind"`
	Backend Backend    `json:"-"`
	Index   int        `json:"index"`
	URL     string     `json:"url,omitempty"`
}

// String describes the source for logs.
func (s Source) String() string {
	if s.Kind == SourceNetwork {
		return s.URL
	}
	return fmt.Sprintf("%s:%d", s.Backend, s.Index)
}

// ESP32StreamURL returns the MJPEG stream URL served by an ESP32-CAM at host.
func ESP32StreamURL(host string) string {
	host = strings.TrimPrefix(strings.TrimPrefix(host, "http://"), "https://")
	host = strings.TrimSuffix(host, "/")
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return "http://" + host + ":81/stream"
}
