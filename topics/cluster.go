package topics

import (
	"math"
	"sort"
)

// normalize skaliert einen Vektor auf Einheitslänge. Nullvektoren bleiben
// unverändert, deren Kosinus-Ähnlichkeit ist dann 0.
func normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// cosine setzt normierte Vektoren gleicher Länge voraus.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

// fitClusters gruppiert normierte Vektoren per Leader-Clustering: jeder Vektor
// wird dem ähnlichsten bestehenden Zentroid zugeschlagen, sofern die
// Kosinus-Ähnlichkeit die Schwelle erreicht, sonst eröffnet er ein neues
// Cluster. Cluster unterhalb von minSize fallen auf den Outlier -1 zurück.
// IDs werden nach absteigender Größe ab 0 vergeben.
//
// Rückgabe: Topic-ID je Eingabeposition, Zentroide, Clustergrößen (inkl. -1).
func fitClusters(vectors [][]float64, threshold float64, minSize int) ([]int, map[int][]float64, map[int]int) {
	type cluster struct {
		centroid []float64
		members  []int
	}

	var clusters []*cluster
	memberOf := make([]int, len(vectors))

	for i, vec := range vectors {
		best, bestSim := -1, -1.0
		for ci, c := range clusters {
			if sim := cosine(vec, c.centroid); sim >= threshold && sim > bestSim {
				best, bestSim = ci, sim
			}
		}
		if best < 0 {
			clusters = append(clusters, &cluster{centroid: append([]float64(nil), vec...), members: []int{i}})
			memberOf[i] = len(clusters) - 1
			continue
		}

		c := clusters[best]
		// Laufenden Mittelwert fortschreiben und renormieren
		n := float64(len(c.members))
		for d := range c.centroid {
			c.centroid[d] = (c.centroid[d]*n + vec[d]) / (n + 1)
		}
		c.centroid = normalize(c.centroid)
		c.members = append(c.members, i)
		memberOf[i] = best
	}

	// Kleine Cluster werden Outlier; der Rest nach Größe sortiert
	kept := make([]int, 0, len(clusters))
	for ci, c := range clusters {
		if len(c.members) >= minSize {
			kept = append(kept, ci)
		}
	}
	sort.Slice(kept, func(a, b int) bool {
		if len(clusters[kept[a]].members) != len(clusters[kept[b]].members) {
			return len(clusters[kept[a]].members) > len(clusters[kept[b]].members)
		}
		return kept[a] < kept[b]
	})

	topicOf := make(map[int]int, len(kept))
	centroids := make(map[int][]float64, len(kept))
	sizes := make(map[int]int)
	for topicID, ci := range kept {
		topicOf[ci] = topicID
		centroids[topicID] = clusters[ci].centroid
		sizes[topicID] = len(clusters[ci].members)
	}

	assignments := make([]int, len(vectors))
	for i := range vectors {
		if topicID, ok := topicOf[memberOf[i]]; ok {
			assignments[i] = topicID
		} else {
			assignments[i] = outlierID
			sizes[outlierID]++
		}
	}

	return assignments, centroids, sizes
}

// transform ordnet Vektoren dem bestehenden Topic-Raum zu. Es entstehen keine
// neuen Topics; unterhalb der Schwelle wird -1 mit Konfidenz 0 vergeben.
func transform(vectors [][]float64, centroids map[int][]float64, threshold float64) ([]int, []float64) {
	topicIDs := make([]int, len(vectors))
	probs := make([]float64, len(vectors))

	// Deterministische Reihenfolge bei gleicher Ähnlichkeit
	ids := make([]int, 0, len(centroids))
	for topicID := range centroids {
		ids = append(ids, topicID)
	}
	sort.Ints(ids)

	for i, vec := range vectors {
		best, bestSim := outlierID, -1.0
		for _, topicID := range ids {
			if sim := cosine(vec, centroids[topicID]); sim >= threshold && sim > bestSim {
				best, bestSim = topicID, sim
			}
		}
		topicIDs[i] = best
		if best == outlierID {
			probs[i] = 0
		} else {
			probs[i] = clamp01(bestSim)
		}
	}
	return topicIDs, probs
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
