package services

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"topic-pulse/models"
	"topic-pulse/topics"
)

// fakeResolver bildet einen Store-Ausschnitt nach, ohne eine Datenbank zu
// brauchen.
type fakeResolver struct {
	ids map[string]int64
}

func (f *fakeResolver) DocumentIDsByCoreID(coreIDs []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, key := range coreIDs {
		if id, ok := f.ids[key]; ok {
			out[key] = id
		}
	}
	return out, nil
}

func testReconciler() *Reconciler {
	return NewReconciler(&fakeResolver{ids: map[string]int64{
		"core:1": 101,
		"core:2": 102,
		"core:3": 103,
	}}, zap.NewNop())
}

func TestResolveIDsReturnsKnownSubset(t *testing.T) {
	r := testReconciler()

	mapping, err := r.ResolveIDs([]string{"core:1", "core:3", "core:unknown"})
	if err != nil {
		t.Fatalf("ResolveIDs: %v", err)
	}
	want := map[string]int64{"core:1": 101, "core:3": 103}
	if !reflect.DeepEqual(mapping, want) {
		t.Errorf("mapping = %v, erwartet %v: unbekannte Schlüssel fehlen, kein Fehler", mapping, want)
	}
}

func TestBuildAssignmentsDropsUnmapped(t *testing.T) {
	r := testReconciler()

	engineOut := []topics.Assignment{
		{Key: "core:1", TopicID: 0, Probability: 0.9},
		{Key: "core:ghost", TopicID: 0, Probability: 0.8},
		{Key: "core:2", TopicID: 1, Probability: 0.7},
	}
	mapping := map[string]int64{"core:1": 101, "core:2": 102}

	assignments := r.BuildAssignments(engineOut, mapping)
	if len(assignments) != 2 {
		t.Fatalf("erwartet 2 Zuordnungen, bekommen %d", len(assignments))
	}
	if assignments[0].DocID != 101 || assignments[0].TopicID != 0 {
		t.Errorf("Zuordnung 0 falsch: %+v", assignments[0])
	}
	if assignments[1].DocID != 102 || assignments[1].TopicID != 1 {
		t.Errorf("Zuordnung 1 falsch: %+v", assignments[1])
	}
	if assignments[0].AssignedAt.IsZero() {
		t.Errorf("AssignedAt muss gesetzt sein")
	}
}

func TestAggregateTrends(t *testing.T) {
	r := testReconciler()

	docs := []models.Document{
		{ID: 101, Year: 2021},
		{ID: 102, Year: 2021},
		{ID: 103, Year: 2022},
		{ID: 104, Year: 0}, // ohne Jahr, wird übersprungen
	}
	assignments := []models.TopicAssignment{
		{DocID: 101, TopicID: 7},
		{DocID: 102, TopicID: 7},
		{DocID: 103, TopicID: 7},
		{DocID: 104, TopicID: 7},
		{DocID: 101, TopicID: 3},
	}

	trends := r.AggregateTrends(assignments, docs)
	want := []models.TopicTrend{
		{TopicID: 3, Year: 2021, Month: 1, DocCount: 1},
		{TopicID: 7, Year: 2021, Month: 1, DocCount: 2},
		{TopicID: 7, Year: 2022, Month: 1, DocCount: 1},
	}
	if !reflect.DeepEqual(trends, want) {
		t.Errorf("trends = %v, erwartet %v", trends, want)
	}

	// Erneute Aggregation über demselben Zustand liefert dasselbe Ergebnis
	again := r.AggregateTrends(assignments, docs)
	if !reflect.DeepEqual(trends, again) {
		t.Errorf("Aggregation ist nicht idempotent: %v vs %v", trends, again)
	}
}

func TestAggregateTrendsEmpty(t *testing.T) {
	r := testReconciler()
	if trends := r.AggregateTrends(nil, nil); len(trends) != 0 {
		t.Errorf("erwartet leeres Ergebnis, bekommen %v", trends)
	}
}
