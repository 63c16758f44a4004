// Package server exposes the assessment engine over HTTP. The surface is
// deliberately thin: one endpoint to run an assessment, one to fetch a
// stored summary.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/entropix/gauntlet/internal/agent"
	"github.com/entropix/gauntlet/internal/config"
	"github.com/entropix/gauntlet/internal/corpus"
	"github.com/entropix/gauntlet/internal/result"
	"github.com/entropix/gauntlet/internal/runner"
	"github.com/entropix/gauntlet/internal/score"
)

// Request is the inbound assessment request. Unknown config keys are
// rejected rather than silently ignored.
type Request struct {
	Participants map[string]string `json:"participants"`
	Config       config.Assessment `json:"config"`
}

// RunResponse is the assessment summary response.
type RunResponse struct {
	RunID   string                      `json:"run_id"`
	Summary summaryBlock                `json:"summary"`
	Dims    map[score.Dimension]float64 `json:"dimension_averages"`
	Timing  result.Timing               `json:"timing"`
	Aborted bool                        `json:"aborted,omitempty"`
}

type summaryBlock struct {
	TotalTasks  int     `json:"total_tasks"`
	TotalPassed int     `json:"total_passed"`
	PassRate    float64 `json:"pass_rate"`
	AvgScore    float64 `json:"avg_score"`
}

// Deps carries everything a Server needs; tests inject fakes here.
type Deps struct {
	Corpus    *corpus.Corpus
	Baselines *score.Table
	Seed      int64
	// NewClient builds the agent client for a participant endpoint. Nil
	// defaults to the JSON-over-HTTP client.
	NewClient func(endpoint string) agent.Client
	// Retention bounds how long completed summaries stay fetchable.
	Retention time.Duration
}

type Server struct {
	deps Deps
	runs *gocache.Cache
}

func New(deps Deps) *gin.Engine {
	if deps.NewClient == nil {
		deps.NewClient = func(endpoint string) agent.Client {
			return agent.NewHTTPClient(endpoint)
		}
	}
	if deps.Retention == 0 {
		deps.Retention = 24 * time.Hour
	}
	s := &Server{
		deps: deps,
		runs: gocache.New(deps.Retention, 10*time.Minute),
	}

	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery())
	g.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	v1 := g.Group("/v1")
	{
		v1.POST("/assessments", s.runAssessment)
		v1.GET("/assessments/:id", s.getAssessment)
	}
	return g
}

func (s *Server) runAssessment(c *gin.Context) {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	var req Request
	if err := dec.Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	endpoint, ok := req.Participants["agent"]
	if !ok || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required participant role: agent"})
		return
	}

	req.Config.ApplyDefaults()
	if err := req.Config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.NewString()
	slog.Info("starting assessment",
		"run_id", runID,
		"agent", endpoint,
		"drift", req.Config.DriftLevel,
		"rot", req.Config.RotLevel)

	assessment, err := runner.RunAssessment(c.Request.Context(), &runner.Options{
		Corpus:  s.deps.Corpus,
		Client:  s.deps.NewClient(endpoint),
		Entropy: req.Config.Entropy(),
		Selection: corpus.Selection{
			TaskIDs:    req.Config.TaskIDs,
			Categories: req.Config.TaskCategories,
			Limit:      req.Config.TaskLimit,
			Percentage: req.Config.TaskPercentage,
		},
		Baselines:   s.deps.Baselines,
		MaxSteps:    req.Config.MaxSteps,
		Timeout:     time.Duration(req.Config.Timeout) * time.Second,
		Concurrency: req.Config.Concurrency,
		Seed:        s.deps.Seed,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := toResponse(runID, assessment.Summary)
	s.runs.SetDefault(runID, resp)
	slog.Info("assessment complete",
		"run_id", runID,
		"tasks", assessment.Summary.TotalTasks,
		"pass_rate", assessment.Summary.PassRate)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getAssessment(c *gin.Context) {
	id := c.Param("id")
	v, ok := s.runs.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or expired run id"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func toResponse(runID string, s *result.Summary) *RunResponse {
	return &RunResponse{
		RunID: runID,
		Summary: summaryBlock{
			TotalTasks:  s.TotalTasks,
			TotalPassed: s.TotalPassed,
			PassRate:    s.PassRate,
			AvgScore:    s.AvgScore,
		},
		Dims:    s.DimensionAverages,
		Timing:  s.Timing,
		Aborted: s.Aborted,
	}
}
