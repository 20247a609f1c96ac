package mpp

import "github.com/goccy/go-json"

// Dump renders a decoded value tree (as produced by DecodeAny) as JSON,
// for logging and debug output only -- never for anything that touches
// the wire. ExtValue and []byte payloads are rendered as their Go
// zero-value JSON encodings (base64 for []byte, an object for ExtValue),
// which is sufficient for a human skimming logs. A map[any]any with
// non-string keys (uncommon on the wire; IPROTO's own maps key on small
// integers, which json.Marshal renders as string keys) fails to encode --
// callers dumping raw untrusted maps should convert keys to strings first.
func Dump(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
