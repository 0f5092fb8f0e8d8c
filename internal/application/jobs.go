package app

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// JobService управляет жизненным циклом фоновых задач анализа.
// Одна задача — один воркер; состояние живёт в port.JobStore,
// прогресс докладывается через него же.
type JobService struct {
	store    port.JobStore
	pipeline *Pipeline
	synth    port.VideoSynthesizer
	log      *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobService создаёт сервис задач.
func NewJobService(store port.JobStore, pipeline *Pipeline, synth port.VideoSynthesizer, log *logrus.Logger) *JobService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &JobService{
		store:    store,
		pipeline: pipeline,
		synth:    synth,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SubmitAnalysis ставит задачу полного анализа в очередь и запускает воркера.
func (s *JobService) SubmitAnalysis(ctx context.Context, req entity.AnalysisRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := entity.NewJob(uuid.NewString(), req)
	if err := s.store.Put(ctx, job); err != nil {
		return nil, err
	}
	s.startWorker(job)
	return job, nil
}

// SubmitDiffVideo ставит задачу сборки видео различий.
func (s *JobService) SubmitDiffVideo(ctx context.Context, req entity.DiffVideoRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := entity.NewDiffVideoJob(uuid.NewString(), req)
	if err := s.store.Put(ctx, job); err != nil {
		return nil, err
	}
	s.startWorker(job)
	return job, nil
}

// SubmitEdgeVideo ставит задачу сборки контурного видео.
func (s *JobService) SubmitEdgeVideo(ctx context.Context, req entity.EdgeVideoRequest) (*entity.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := entity.NewEdgeVideoJob(uuid.NewString(), req)
	if err := s.store.Put(ctx, job); err != nil {
		return nil, err
	}
	s.startWorker(job)
	return job, nil
}

// Get возвращает текущее состояние задачи.
func (s *JobService) Get(ctx context.Context, id string) (*entity.Job, error) {
	return s.store.Get(ctx, id)
}

// Cancel прерывает выполнение задачи, если она ещё идёт.
func (s *JobService) Cancel(id string) bool {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Wait дожидается завершения всех воркеров (используется при останове сервиса).
func (s *JobService) Wait() {
	s.wg.Wait()
}

func (s *JobService) startWorker(job *entity.Job) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	// Воркер получает собственную копию: вызывающий оставляет себе
	// снимок принятой задачи и не гонится с переходами её состояния.
	clone := *job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.cancels, clone.ID)
			s.mu.Unlock()
		}()
		s.run(ctx, &clone)
	}()
}

// run выполняет задачу и фиксирует итог в хранилище.
func (s *JobService) run(ctx context.Context, job *entity.Job) {
	log := s.log.WithFields(logrus.Fields{"job": job.ID, "kind": job.Kind})

	job.Start()
	if err := s.store.Update(ctx, job); err != nil {
		log.WithError(err).Error("failed to mark job processing")
	}

	progress := port.ProgressFunc(func(p float64, stage string) {
		if err := s.store.UpdateProgress(context.Background(), job.ID, p); err != nil {
			log.WithError(err).WithField("stage", stage).Warn("failed to report progress")
		}
	})

	result, err := s.execute(ctx, job, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("job cancelled")
		} else {
			log.WithError(err).Error("job failed")
		}
		job.Fail(err)
	} else {
		job.Complete(result)
		log.Info("job completed")
	}

	// Итог пишется вне ctx задачи: отменённая задача тоже должна
	// сохранить своё финальное состояние.
	if err := s.store.Update(context.Background(), job); err != nil {
		log.WithError(err).Error("failed to store job result")
	}
}

func (s *JobService) execute(ctx context.Context, job *entity.Job, progress port.ProgressSink) (*entity.AnalysisResult, error) {
	switch job.Kind {
	case entity.JobKindDiffVideo:
		return s.runDiffVideo(ctx, job.DiffRequest)
	case entity.JobKindEdgeVideo:
		return s.runEdgeVideo(ctx, job.EdgeRequest)
	default:
		return s.pipeline.Run(ctx, job.Request, progress)
	}
}

func (s *JobService) runDiffVideo(ctx context.Context, req *entity.DiffVideoRequest) (*entity.AnalysisResult, error) {
	opts := port.DiffVideoOptions{
		CrackMapsDir:      req.CrackMapsDir,
		DepthMapsDir:      req.DepthMapsDir,
		FPS:               req.FPS,
		ApplyEdges:        req.ApplyEdges,
		ApplyCrackOverlay: req.ApplyCrackOverlay,
		ApplyDepthColors:  req.ApplyDepthColors,
	}
	var err error
	if req.ReferenceFramesDir != "" && req.DamagedFramesDir != "" {
		_, err = s.synth.SynthesizeFromFrames(ctx, req.ReferenceFramesDir, req.DamagedFramesDir, req.OutputVideoPath, opts)
	} else {
		_, err = s.synth.SynthesizeFromVideos(ctx, req.ReferenceVideoPath, req.DamagedVideoPath, req.OutputVideoPath, opts)
	}
	if err != nil {
		return nil, err
	}
	return &entity.AnalysisResult{DiffVideoPath: req.OutputVideoPath}, nil
}

func (s *JobService) runEdgeVideo(ctx context.Context, req *entity.EdgeVideoRequest) (*entity.AnalysisResult, error) {
	if _, err := s.synth.SynthesizeEdgeVideo(ctx, req.VideoPath, req.OutputVideoPath); err != nil {
		return nil, err
	}
	return &entity.AnalysisResult{DiffVideoPath: req.OutputVideoPath}, nil
}
