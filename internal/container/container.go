package container

import (
	"github.com/sirupsen/logrus"

	app "tyre-vision/internal/application"
	"tyre-vision/internal/domain/port"
)

type Container struct {
	Pipeline   *app.Pipeline
	JobService *app.JobService
}

func New(
	store port.JobStore,
	pre port.Preprocessor,
	cracks port.CrackDetector,
	depth port.DepthEstimator,
	damage port.DamageClassifier,
	synth port.VideoSynthesizer,
	log *logrus.Logger,
) *Container {
	pipeline := app.NewPipeline(pre, cracks, depth, damage, synth, log)
	jobService := app.NewJobService(store, pipeline, synth, log)

	return &Container{
		Pipeline:   pipeline,
		JobService: jobService,
	}
}
