package proxy

import (
	"bytes"

	"github.com/grafov/m3u8"
)

// probe inspects a playlist body for diagnostics only, the rewritten bytes
// are served regardless of what the decoder makes of them.
func probe(manifest []byte) (kind string, entries int) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(manifest), false)
	if err != nil {
		return "unknown", 0
	}

	switch listType {
	case m3u8.MASTER:
		masterpl := playlist.(*m3u8.MasterPlaylist)
		for _, variant := range masterpl.Variants {
			if variant == nil {
				break
			}
			entries++
		}
		return "master", entries

	case m3u8.MEDIA:
		mediapl := playlist.(*m3u8.MediaPlaylist)
		for _, segment := range mediapl.Segments {
			if segment == nil {
				break
			}
			entries++
		}
		return "media", entries
	}

	return "unknown", 0
}
