package topics

import (
	"errors"
	"fmt"
)

// Stage bezeichnet den Pipeline-Schritt, in dem ein Engine-Fehler aufgetreten ist.
type Stage string

const (
	StageEncode    Stage = "encode"
	StageFit       Stage = "fit"
	StageTransform Stage = "transform"
	StagePersist   Stage = "persist"
)

var (
	// ErrModelNotInitialized: update/assign wurde vor einem erfolgreichen
	// initialize aufgerufen. Kein Artefakt vorhanden, keine Writes erfolgt.
	ErrModelNotInitialized = errors.New("topic-modell ist nicht initialisiert, zuerst init ausführen")

	// ErrModelExists: initialize würde ein bestehendes Artefakt überschreiben
	// und damit alte und neue Topic-IDs stillschweigend vermischen. Nur mit
	// explizitem Force erlaubt.
	ErrModelExists = errors.New("topic-modell existiert bereits, überschreiben nur mit force")

	// ErrEmptyCorpus: fit über einem leeren Korpus ist nicht definiert.
	ErrEmptyCorpus = errors.New("leerer korpus")
)

// EngineError kapselt einen Fehler der darunterliegenden Embedding- oder
// Clustering-Fähigkeit samt Stufe. Die Engine wiederholt solche Fehler nicht;
// Retry-Politik gehört dem Orchestrator.
type EngineError struct {
	Stage Stage
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("topic-engine (%s): %v", e.Stage, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(stage Stage, err error) error {
	return &EngineError{Stage: stage, Err: err}
}
