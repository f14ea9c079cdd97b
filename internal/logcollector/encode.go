package logcollector

import (
	"encoding/json"

	"github.com/kadirpekel/backplane/internal/eventdetector"
)

func encodeLineJSON(l Line) ([]byte, error) {
	return json.Marshal(l)
}

func encodeEventJSON(e eventdetector.Event) ([]byte, error) {
	return json.Marshal(e)
}
