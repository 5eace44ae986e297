package coreapi

import (
	"encoding/json"
	"testing"

	"topic-pulse/models"
)

func TestContentHash(t *testing.T) {
	a := ContentHash("Deep Learning", "An overview.")
	b := ContentHash("Deep Learning", "An overview.")
	if a != b {
		t.Errorf("gleicher Inhalt muss gleichen Hash ergeben")
	}
	if len(a) != 64 {
		t.Errorf("erwartet hex-kodiertes SHA-256 (64 Zeichen), bekommen %d", len(a))
	}

	// Der Separator verhindert, dass Titel/Abstract-Grenzverschiebungen
	// kollidieren
	if ContentHash("ab", "c") == ContentHash("a", "bc") {
		t.Errorf("Grenzverschiebung darf nicht kollidieren")
	}
	if ContentHash("x", "y") == ContentHash("x", "z") {
		t.Errorf("unterschiedlicher Abstract muss unterschiedlichen Hash ergeben")
	}
}

func TestDecodeSearchResponseUnwrapsMessage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantHits  int
		wantCount int
	}{
		{
			name:      "direkte antwort",
			body:      `{"totalHits": 2, "results": [{"id":"1"},{"id":"2"}]}`,
			wantHits:  2,
			wantCount: 2,
		},
		{
			name:      "message-wrapper",
			body:      `{"message": "{\"totalHits\": 1, \"results\": [{\"id\":\"3\"}]}"}`,
			wantHits:  1,
			wantCount: 1,
		},
		{
			name:      "leere antwort",
			body:      `{"totalHits": 0}`,
			wantHits:  0,
			wantCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeSearchResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("decodeSearchResponse: %v", err)
			}
			if resp.TotalHits != tt.wantHits {
				t.Errorf("TotalHits = %d, erwartet %d", resp.TotalHits, tt.wantHits)
			}
			if len(resp.Results) != tt.wantCount {
				t.Errorf("Results = %d, erwartet %d", len(resp.Results), tt.wantCount)
			}
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	raw := json.RawMessage(`{
		"id": 123456,
		"doi": "10.1000/xyz",
		"title": " Topic Drift in Science ",
		"abstract": "We measure drift.",
		"authors": [{"name": "Ada Lovelace"}, {"firstName": "Alan", "lastName": "Turing"}, "Grace Hopper"],
		"yearPublished": 2021,
		"language": {"code": "en", "name": "English"},
		"downloadUrl": "https://example.org/paper.pdf"
	}`)

	doc, err := NormalizeRecord(raw)
	if err != nil {
		t.Fatalf("NormalizeRecord: %v", err)
	}
	if doc.CoreID != "123456" {
		t.Errorf("CoreID = %q, numerische IDs müssen als String landen", doc.CoreID)
	}
	if doc.Title != "Topic Drift in Science" {
		t.Errorf("Title = %q, Whitespace muss getrimmt sein", doc.Title)
	}
	if doc.Authors != "Ada Lovelace, Alan Turing, Grace Hopper" {
		t.Errorf("Authors = %q", doc.Authors)
	}
	if doc.Year != 2021 {
		t.Errorf("Year = %d, yearPublished muss als Fallback greifen", doc.Year)
	}
	if doc.Lang != "en" {
		t.Errorf("Lang = %q, Objekt-Form muss auf den Code reduziert werden", doc.Lang)
	}
	if doc.URL != "https://example.org/paper.pdf" {
		t.Errorf("URL = %q", doc.URL)
	}
	if doc.PDFURL != "https://example.org/paper.pdf" {
		t.Errorf("PDFURL = %q, downloadUrl mit .pdf-Endung muss übernommen werden", doc.PDFURL)
	}
	if doc.ContentHash != ContentHash(doc.Title, doc.Abstract) {
		t.Errorf("ContentHash inkonsistent")
	}
	if len(doc.RawJSON) == 0 {
		t.Errorf("RawJSON muss den Original-Record tragen")
	}
}

func TestNormalizeRecordFieldVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want func(t *testing.T, doc *models.Document)
	}{
		{
			name: "string-id und string-sprache",
			raw:  `{"id": "abc", "language": "de", "year": 1999}`,
			want: func(t *testing.T, doc *models.Document) {
				if doc.CoreID != "abc" || doc.Lang != "de" || doc.Year != 1999 {
					t.Errorf("bekommen %+v", doc)
				}
			},
		},
		{
			name: "urls-liste als fallback",
			raw:  `{"id": "u1", "urls": ["https://a.example/1", "https://a.example/2"]}`,
			want: func(t *testing.T, doc *models.Document) {
				if doc.URL != "https://a.example/1" {
					t.Errorf("URL = %q, erwartet ersten Listeneintrag", doc.URL)
				}
			},
		},
		{
			name: "fehlende felder bleiben leer",
			raw:  `{"id": "u2"}`,
			want: func(t *testing.T, doc *models.Document) {
				if doc.Lang != "" || doc.Year != 0 || doc.URL != "" || doc.Authors != "" {
					t.Errorf("bekommen %+v", doc)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := NormalizeRecord(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("NormalizeRecord: %v", err)
			}
			tt.want(t, doc)
		})
	}
}
