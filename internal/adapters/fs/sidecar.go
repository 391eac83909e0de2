package fs

import (
	"os"

	"github.com/goccy/go-json"
)

// Sidecar is persisted next to each committed object.
type Sidecar struct {
	ContentType     string            `json:"content_type"`
	ContentEncoding string            `json:"content_encoding"`
	Size            int64             `json:"size"`
	Metadata        map[string]string `json:"metadata"`
}

func loadSidecar(path string) (Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sidecar{}, err
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Sidecar{}, err
	}
	return sc, nil
}

// saveSidecar writes atomically (temp file, then rename).
func saveSidecar(path string, sc Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
