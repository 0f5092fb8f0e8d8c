package api

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	app "tyre-vision/internal/application"
	"tyre-vision/internal/domain/entity"
	"tyre-vision/internal/domain/port"
)

// Server HTTP-фасад сервиса анализа покрышек.
type Server struct {
	jobs *app.JobService
	log  *logrus.Logger
}

// NewServer создаёт HTTP-сервер поверх сервиса задач.
func NewServer(jobs *app.JobService, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{jobs: jobs, log: log}
}

// Router собирает маршруты API.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	router.GET("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/analyze", s.submitAnalysis)
		v1.GET("/analyze/:id", s.getJob)
		v1.DELETE("/analyze/:id", s.cancelJob)
		v1.POST("/difference-video", s.submitDiffVideo)
		v1.POST("/edge-video", s.submitEdgeVideo)
	}

	return router
}

// Run запускает сервер на указанном адресе.
func (s *Server) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tyre-vision"})
}

// submitAnalysis принимает запрос полного анализа и отвечает сразу,
// не дожидаясь конвейера: клиент опрашивает задачу по jobId.
func (s *Server) submitAnalysis(c *gin.Context) {
	var req entity.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.jobs.SubmitAnalysis(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.log.WithField("job", job.ID).Info("analysis job accepted")
	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, port.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if !s.jobs.Cancel(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job is not running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobId": id, "cancelled": true})
}

func (s *Server) submitDiffVideo(c *gin.Context) {
	var req entity.DiffVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.jobs.SubmitDiffVideo(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (s *Server) submitEdgeVideo(c *gin.Context) {
	var req entity.EdgeVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.jobs.SubmitEdgeVideo(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": job.Status,
	})
}
