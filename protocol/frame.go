// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Length-delimited wire framing for codec output.
//
// A frame is [uvarint length][tag][body]. The length covers tag and body. The
// tag byte is written by the codec and is never encrypted, so a peer can tell
// DATA from STATE frames before any key is established.

package protocol

import "fmt"

// Frame tags.
const (
	TagData  byte = 0
	TagState byte = 1
)

// DefaultMaxFrameSize bounds a single decoded frame.
const DefaultMaxFrameSize = 16 << 20 // 16 MiB

// TagName returns a printable tag name.
func TagName(tag byte) string {
	switch tag {
	case TagData:
		return "data"
	case TagState:
		return "state"
	}
	return fmt.Sprintf("tag(%d)", tag)
}

// Tag returns the tag byte of a frame payload.
func Tag(payload []byte) (byte, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyFrame
	}
	return payload[0], nil
}
