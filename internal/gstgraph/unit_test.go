package gstgraph

import (
	"testing"

	"github.com/e7canasta/streamview/internal/graph"
)

func TestPadMediaType(t *testing.T) {
	tests := []struct {
		name     string
		capsName string
		rtpMedia string
		want     string
	}{
		{
			name:     "rtsp video pad",
			capsName: "application/x-rtp",
			rtpMedia: "video",
			want:     "video/x-rtp",
		},
		{
			name:     "rtsp audio pad stays non-video",
			capsName: "application/x-rtp",
			rtpMedia: "audio",
			want:     "application/x-rtp",
		},
		{
			name:     "rtp pad without media field",
			capsName: "application/x-rtp",
			want:     "application/x-rtp",
		},
		{
			name:     "raw video passes through",
			capsName: "video/x-raw",
			want:     "video/x-raw",
		},
		{
			name:     "encoded video passes through",
			capsName: "video/x-h264",
			rtpMedia: "video",
			want:     "video/x-h264",
		},
		{
			name: "empty caps",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := padMediaType(tt.capsName, tt.rtpMedia); got != tt.want {
				t.Errorf("padMediaType(%q, %q) = %q, want %q", tt.capsName, tt.rtpMedia, got, tt.want)
			}
		})
	}
}

func TestProtocolsMask(t *testing.T) {
	tests := []struct {
		transport graph.Transport
		want      int
	}{
		{graph.TransportUDP, 0x1},
		{graph.TransportTCP, 0x4},
		{graph.TransportAny, 0x7},
	}

	for _, tt := range tests {
		if got := protocolsMask(tt.transport); got != tt.want {
			t.Errorf("protocolsMask(%s) = %#x, want %#x", tt.transport, got, tt.want)
		}
	}
}
