package iproto

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// Greeting is the 128-byte banner a server sends immediately after
// accepting a connection, before any framed messages.
type Greeting struct {
	// Version is the trimmed ASCII banner from the first 64 bytes,
	// retained only for diagnostics.
	Version string
	// Salt is the decoded auth salt from the next 44 (base64) bytes.
	Salt []byte
}

// ParseGreeting parses exactly GreetingSize bytes. Any parse error is
// treated as unrecoverable for the connection (spec section 4.4).
func ParseGreeting(buf []byte) (Greeting, error) {
	if len(buf) != GreetingSize {
		return Greeting{}, fmt.Errorf("%w: greeting must be %d bytes, got %d", ErrProtocol, GreetingSize, len(buf))
	}
	versionRaw := buf[:greetingVersionSize]
	saltRaw := buf[greetingVersionSize : greetingVersionSize+greetingSaltB64Size]

	version := string(bytes.TrimRight(versionRaw, "\x00\n "))

	saltB64 := bytes.TrimRight(saltRaw, "\x00\n ")
	salt, err := base64.StdEncoding.DecodeString(string(saltB64))
	if err != nil {
		return Greeting{}, fmt.Errorf("%w: bad greeting salt: %v", ErrProtocol, err)
	}
	return Greeting{Version: version, Salt: salt}, nil
}
