package service

import (
	"errors"

	"streetclip/internal/models"
	"streetclip/internal/render"
)

// Stage is a step of one extraction run.
type Stage int

const (
	StageCollectInput Stage = iota
	StageGeocode
	StageBuildBuffer
	StageClip
	StageRender
	StageDone
	StageError
)

var stageNames = [...]string{"collect_input", "geocode", "build_buffer", "clip", "render", "done", "error"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether no stage follows s.
func (s Stage) Terminal() bool { return s == StageDone || s == StageError }

// transition returns the stage that follows from once it finished with err,
// and the output format to carry on with. A vector RenderError while both
// formats were requested completes the run with the map alone; any other
// failure ends it.
func transition(from Stage, err error, format models.OutputFormat) (Stage, models.OutputFormat) {
	if from.Terminal() {
		return from, format
	}
	if err == nil {
		return from + 1, format
	}

	var rerr *render.RenderError
	if from == StageRender && format == models.FormatBoth && errors.As(err, &rerr) && rerr.Format == "svg" {
		return StageDone, models.FormatHTML
	}
	return StageError, format
}
