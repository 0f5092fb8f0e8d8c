package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	app "tyre-vision/internal/application"
	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
	"tyre-vision/internal/infrastructure/storage"
)

// Стадии-заглушки: API-тестам важна только маршрутизация и коды ответов.

type stubPreprocessor struct{}

func (stubPreprocessor) ProcessVideo(ctx context.Context, videoPath, outputDir string, fps int) (*entity.PreprocessResult, error) {
	return &entity.PreprocessResult{TotalFrames: 1, ProcessedFramesDir: outputDir}, nil
}

func (stubPreprocessor) ProcessFramesDir(ctx context.Context, framesDir, outputDir string) (*entity.PreprocessResult, error) {
	return &entity.PreprocessResult{TotalFrames: 1, ProcessedFramesDir: outputDir}, nil
}

type stubCracks struct{}

func (stubCracks) AnalyzeCracks(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.CrackAnalysis, error) {
	return &entity.CrackAnalysis{}, nil
}

type stubDepth struct{}

func (stubDepth) AnalyzeDepth(ctx context.Context, referenceDir, damagedDir, outputDir string) (*entity.DepthAnalysis, error) {
	return &entity.DepthAnalysis{}, nil
}

type stubDamage struct{}

func (stubDamage) ClassifyDamage(ctx context.Context, damagedDir, crackMasksDir, outputDir string) (*entity.DamageAnalysis, error) {
	return &entity.DamageAnalysis{}, nil
}

type stubSynth struct{}

func (stubSynth) SynthesizeFromFrames(ctx context.Context, referenceDir, damagedDir, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	return &port.DiffVideoMetadata{OutputPath: outputPath}, nil
}

func (stubSynth) SynthesizeFromVideos(ctx context.Context, referencePath, damagedPath, outputPath string, opts port.DiffVideoOptions) (*port.DiffVideoMetadata, error) {
	return &port.DiffVideoMetadata{OutputPath: outputPath}, nil
}

func (stubSynth) SynthesizeEdgeVideo(ctx context.Context, videoPath, outputPath string) (*port.DiffVideoMetadata, error) {
	return &port.DiffVideoMetadata{OutputPath: outputPath}, nil
}

func newTestRouter() (*gin.Engine, *app.JobService) {
	gin.SetMode(gin.TestMode)
	store := storage.NewMemoryJobStore()
	pipeline := app.NewPipeline(stubPreprocessor{}, stubCracks{}, stubDepth{}, stubDamage{}, stubSynth{}, nil)
	jobs := app.NewJobService(store, pipeline, stubSynth{}, nil)
	return NewServer(jobs, nil).Router(), jobs
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestSubmitAnalysis_Accepted(t *testing.T) {
	router, jobs := newTestRouter()
	w := postJSON(t, router, "/api/v1/analyze", entity.AnalysisRequest{
		ReferenceVideoPath: "ref.mp4",
		DamagedVideoPath:   "dam.mp4",
		OutputDir:          t.TempDir(),
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	jobs.Wait()
}

func TestSubmitAnalysis_InvalidRequest(t *testing.T) {
	router, _ := newTestRouter()
	w := postJSON(t, router, "/api/v1/analyze", entity.AnalysisRequest{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetJob_FullLifecycle(t *testing.T) {
	router, jobs := newTestRouter()
	w := postJSON(t, router, "/api/v1/analyze", entity.AnalysisRequest{
		ReferenceVideoPath: "ref.mp4",
		DamagedVideoPath:   "dam.mp4",
		OutputDir:          t.TempDir(),
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	jobs.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for {
		get := httptest.NewRecorder()
		router.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/"+resp.JobID, nil))
		require.Equal(t, http.StatusOK, get.Code)

		var job entity.Job
		require.NoError(t, json.Unmarshal(get.Body.Bytes(), &job))
		if job.Done() {
			require.Equal(t, entity.JobCompleted, job.Status)
			break
		}
		require.True(t, time.Now().Before(deadline), "job did not finish in time")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelJob_NotRunning(t *testing.T) {
	router, _ := newTestRouter()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/analyze/missing", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitDiffVideo(t *testing.T) {
	router, jobs := newTestRouter()
	w := postJSON(t, router, "/api/v1/difference-video", entity.DiffVideoRequest{
		ReferenceVideoPath: "ref.mp4",
		DamagedVideoPath:   "dam.mp4",
		OutputVideoPath:    "diff.mp4",
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	jobs.Wait()
}

func TestSubmitEdgeVideo_InvalidRequest(t *testing.T) {
	router, _ := newTestRouter()
	w := postJSON(t, router, "/api/v1/edge-video", entity.EdgeVideoRequest{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}
