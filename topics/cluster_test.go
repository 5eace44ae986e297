package topics

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	v := normalize([]float64{3, 4})
	if math.Abs(v[0]-0.6) > 1e-9 || math.Abs(v[1]-0.8) > 1e-9 {
		t.Errorf("normalize(3,4) = %v, erwartet (0.6, 0.8)", v)
	}

	zero := normalize([]float64{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("Nullvektor muss unverändert bleiben, bekommen %v", zero)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identisch", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"entgegengesetzt", []float64{1, 0}, []float64{-1, 0}, -1},
		{"ungleiche länge", []float64{1, 0}, []float64{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosine = %f, erwartet %f", got, tt.want)
			}
		})
	}
}

func TestFitClustersAssignsIDsBySize(t *testing.T) {
	// Drei Gruppen: 3x X-Achse, 2x Y-Achse, 1x Z-Achse (unter minSize)
	vectors := [][]float64{
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	assignments, centroids, sizes := fitClusters(vectors, 0.6, 2)

	if len(centroids) != 2 {
		t.Fatalf("erwartet 2 Topics, bekommen %d", len(centroids))
	}
	// Größtes Cluster bekommt ID 0
	if sizes[0] != 3 || sizes[1] != 2 || sizes[outlierID] != 1 {
		t.Errorf("Größen falsch: %v", sizes)
	}
	want := []int{0, 0, 1, 0, 1, outlierID}
	for i, topicID := range assignments {
		if topicID != want[i] {
			t.Errorf("Position %d: Topic %d, erwartet %d", i, topicID, want[i])
		}
	}
}

func TestFitClustersAllOutliers(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0, 1}}
	assignments, centroids, sizes := fitClusters(vectors, 0.9, 3)

	if len(centroids) != 0 {
		t.Fatalf("erwartet keine Topics, bekommen %d", len(centroids))
	}
	if sizes[outlierID] != 2 {
		t.Errorf("erwartet 2 Outlier, bekommen %d", sizes[outlierID])
	}
	for i, topicID := range assignments {
		if topicID != outlierID {
			t.Errorf("Position %d: Topic %d, erwartet Outlier", i, topicID)
		}
	}
}

func TestTransform(t *testing.T) {
	centroids := map[int][]float64{
		0: {1, 0},
		1: {0, 1},
	}

	tests := []struct {
		name      string
		vec       []float64
		wantTopic int
		wantProb  float64
	}{
		{"exakter treffer", []float64{1, 0}, 0, 1},
		{"zweites topic", []float64{0, 1}, 1, 1},
		{"unter schwelle", normalize([]float64{1, -1}), outlierID, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topicIDs, probs := transform([][]float64{tt.vec}, centroids, 0.8)
			if topicIDs[0] != tt.wantTopic {
				t.Errorf("Topic %d, erwartet %d", topicIDs[0], tt.wantTopic)
			}
			if math.Abs(probs[0]-tt.wantProb) > 1e-9 {
				t.Errorf("Konfidenz %f, erwartet %f", probs[0], tt.wantProb)
			}
		})
	}
}

func TestTransformNeverCreatesTopics(t *testing.T) {
	centroids := map[int][]float64{0: {1, 0, 0}}
	topicIDs, _ := transform([][]float64{{0, 0, 1}}, centroids, 0.5)
	if topicIDs[0] != outlierID {
		t.Errorf("transform darf keine neuen Topics eröffnen, bekommen %d", topicIDs[0])
	}
}
