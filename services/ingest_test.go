package services

import (
	"os"
	"path/filepath"
	"testing"

	"topic-pulse/models"
	"topic-pulse/topics"
)

func TestCleanBatchRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clean", "2020_2021_en.jsonl")
	docs := []models.Document{
		{CoreID: "core:1", Title: "First", Abstract: "Alpha", Year: 2020, Lang: "en"},
		{CoreID: "core:2", Title: "Second", Abstract: "Beta", Year: 2021, Lang: "en"},
	}

	if err := WriteCleanBatch(path, docs); err != nil {
		t.Fatalf("WriteCleanBatch: %v", err)
	}

	got, err := ReadCleanBatch(path)
	if err != nil {
		t.Fatalf("ReadCleanBatch: %v", err)
	}
	if len(got) != len(docs) {
		t.Fatalf("erwartet %d Dokumente, bekommen %d", len(docs), len(got))
	}
	for i := range docs {
		if got[i].CoreID != docs[i].CoreID || got[i].Title != docs[i].Title || got[i].Year != docs[i].Year {
			t.Errorf("Dokument %d: %+v, erwartet %+v", i, got[i], docs[i])
		}
	}
}

func TestReadCleanBatchMissingFile(t *testing.T) {
	if _, err := ReadCleanBatch(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Errorf("fehlende Datei muss einen Fehler liefern")
	}
}

func TestToEngineCorpusCarriesKeys(t *testing.T) {
	docs := []models.Document{
		{CoreID: "core:9", Title: "T", Abstract: "A"},
	}
	corpus := ToEngineCorpus(docs)
	if len(corpus) != 1 {
		t.Fatalf("erwartet 1 Eintrag, bekommen %d", len(corpus))
	}
	want := topics.Document{Key: "core:9", Title: "T", Abstract: "A"}
	if corpus[0] != want {
		t.Errorf("corpus[0] = %+v, erwartet %+v", corpus[0], want)
	}
}

func TestAcquireRunLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "topic_model.json.lock")

	unlock, err := acquireRunLock(path)
	if err != nil {
		t.Fatalf("acquireRunLock: %v", err)
	}

	// Zweiter Lauf gegen denselben Pfad muss abgewiesen werden
	if _, err := acquireRunLock(path); err == nil {
		t.Fatalf("zweiter Lock gegen denselben Pfad muss scheitern")
	}

	unlock()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("unlock muss die Lock-Datei entfernen")
	}

	// Nach dem Unlock ist der Pfad wieder frei
	unlock2, err := acquireRunLock(path)
	if err != nil {
		t.Fatalf("Lock nach Unlock: %v", err)
	}
	unlock2()
}
