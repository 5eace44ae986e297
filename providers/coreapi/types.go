package coreapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"topic-pulse/models"
)

// searchRequest ist der POST-Body für die CORE v3 Works-Suche.
type searchRequest struct {
	Q      string `json:"q"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Scroll bool   `json:"scroll"`
}

// SearchResponse ist die Top-Level-Struktur der CORE-Antwort. Einzelne Shards
// liefern die eigentliche Antwort als JSON-Text unter "message"; das wird beim
// Dekodieren ausgepackt.
type SearchResponse struct {
	TotalHits int               `json:"totalHits"`
	Results   []json.RawMessage `json:"results"`
}

// messageEnvelope fängt die verpackte Antwortform ab.
type messageEnvelope struct {
	Message string `json:"message"`
}

// decodeSearchResponse dekodiert eine CORE-Antwort inklusive des
// "message"-Wrappers mancher Shards.
func decodeSearchResponse(body []byte) (*SearchResponse, error) {
	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Results != nil {
		return &resp, nil
	}

	var env messageEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		var wrapped SearchResponse
		if err := json.Unmarshal([]byte(env.Message), &wrapped); err == nil && wrapped.Results != nil {
			return &wrapped, nil
		}
	}

	// Leere, aber gültige Antwort
	resp.Results = []json.RawMessage{}
	return &resp, nil
}

// fieldCandidate ist ein Kandidat für die defensive Feld-Normalisierung:
// Feldname plus Extraktor, in Prioritätsreihenfolge probiert.
type fieldCandidate struct {
	field   string
	extract func(v any) string
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
	}
	return ""
}

// urlCandidates sind die bekannten Feldnamen für die Haupt-URL eines Records.
var urlCandidates = []fieldCandidate{
	{"downloadUrl", asString},
	{"sourceFulltextUrl", asString},
	{"urls", firstString},
}

// pickField probiert die Kandidaten der Reihe nach und liefert den ersten
// nicht-leeren Treffer, sonst den leeren String.
func pickField(rec map[string]any, candidates []fieldCandidate) string {
	for _, c := range candidates {
		if v, ok := rec[c.field]; ok && v != nil {
			if s := c.extract(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// normalizeURLs extrahiert Haupt- und PDF-URL aus einem Record.
func normalizeURLs(rec map[string]any) (string, string) {
	mainURL := pickField(rec, urlCandidates)

	pdfURL := asString(rec["pdfUrl"])
	if pdfURL == "" {
		if d := asString(rec["downloadUrl"]); strings.HasSuffix(strings.ToLower(d), ".pdf") {
			pdfURL = d
		}
	}
	return mainURL, pdfURL
}

// normalizeAuthors wandelt die heterogene Autorenliste in einen flachen
// Anzeige-String um. Bekannte Namensfelder: name, fullName, firstName+lastName.
func normalizeAuthors(v any) string {
	list, ok := v.([]any)
	if !ok {
		return ""
	}

	var names []string
	for _, entry := range list {
		switch a := entry.(type) {
		case string:
			if s := strings.TrimSpace(a); s != "" {
				names = append(names, s)
			}
		case map[string]any:
			name := asString(a["name"])
			if name == "" {
				name = asString(a["fullName"])
			}
			if name == "" {
				name = strings.TrimSpace(asString(a["firstName"]) + " " + asString(a["lastName"]))
			}
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return strings.Join(names, ", ")
}

// normalizeLang akzeptiert sowohl "en" als auch {"code":"en","name":"English"}.
func normalizeLang(v any) string {
	switch l := v.(type) {
	case string:
		return strings.TrimSpace(l)
	case map[string]any:
		return asString(l["code"])
	}
	return ""
}

// normalizeYear probiert die bekannten Jahresfelder.
func normalizeYear(rec map[string]any) int {
	for _, field := range []string{"year", "yearPublished"} {
		switch y := rec[field].(type) {
		case float64:
			return int(y)
		case json.Number:
			if i, err := y.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return 0
}

// ContentHash berechnet den stabilen Dedup-Fingerprint über Titel und Abstract.
func ContentHash(title, abstract string) string {
	sum := sha256.Sum256([]byte(title + "|" + abstract))
	return hex.EncodeToString(sum[:])
}

// NormalizeRecord wandelt einen rohen CORE-Record in unser Document-Modell um.
func NormalizeRecord(raw json.RawMessage) (*models.Document, error) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("record nicht dekodierbar: %w", err)
	}

	coreID := asString(rec["id"])
	if coreID == "" {
		if f, ok := rec["id"].(float64); ok {
			coreID = fmt.Sprintf("%.0f", f)
		}
	}

	title := asString(rec["title"])
	abstract := asString(rec["abstract"])
	url, pdfURL := normalizeURLs(rec)

	doc := &models.Document{
		CoreID:      coreID,
		DOI:         asString(rec["doi"]),
		Title:       title,
		Abstract:    abstract,
		FullText:    asString(rec["fullText"]),
		Authors:     normalizeAuthors(rec["authors"]),
		Venue:       asString(rec["venue"]),
		Year:        normalizeYear(rec),
		Lang:        normalizeLang(rec["language"]),
		URL:         url,
		PDFURL:      pdfURL,
		RawJSON:     raw,
		ContentHash: ContentHash(title, abstract),
	}
	return doc, nil
}
