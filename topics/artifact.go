package topics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// artifactVersion wird beim Laden geprüft, damit ein Format-Wechsel nicht
// stillschweigend alte Artefakte fehlinterpretiert.
const artifactVersion = 1

// modelArtifact ist die serialisierte Form des gefitteten Topic-Modells.
// Es ist der einzige Träger von Engine-Zustand zwischen Prozessläufen; die
// Cluster-Geometrie (Zentroide) steht nach initialize fest, nur die
// Term-Statistik entwickelt sich mit jedem update weiter.
type modelArtifact struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Normierte Zentroide je Topic-ID (ohne Outlier)
	Centroids map[int][]float64 `json:"centroids"`
	// Dokumentanzahl je Topic, inklusive Outlier -1
	Sizes map[int]int `json:"sizes"`
	// Mindest-Kosinus-Ähnlichkeit für eine Topic-Zuordnung
	Threshold float64 `json:"threshold"`

	Stats *termStats `json:"stats"`
}

// loadArtifact lädt das Artefakt. Ein fehlendes Artefakt bedeutet
// UNINITIALIZED und wird als ErrModelNotInitialized gemeldet.
func loadArtifact(path string) (*modelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModelNotInitialized
		}
		return nil, err
	}

	var m modelArtifact
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("artefakt nicht lesbar: %w", err)
	}
	if m.Version != artifactVersion {
		return nil, fmt.Errorf("artefakt-version %d wird nicht unterstützt", m.Version)
	}
	if m.Stats == nil {
		m.Stats = newTermStats()
	}
	return &m, nil
}

// saveArtifact schreibt das Artefakt atomar (Temp-Datei + Rename), damit ein
// Absturz während des Schreibens kein halbes Modell hinterlässt.
func saveArtifact(path string, m *modelArtifact) error {
	m.Version = artifactVersion
	m.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".topic_model-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// artifactExists prüft, ob ein ladbares Artefakt am Pfad liegt.
func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
