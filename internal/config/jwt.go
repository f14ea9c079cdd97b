package config

import (
	"encoding/base64"
	"encoding/json"
)

// base64URLDecode decodes a JWT segment, which uses unpadded base64url.
func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

func parseJSONObject(data []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
