// Package api exposes the risk engine over HTTP. Handlers stay thin: they
// decode, call the account manager, and encode.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"propguard/alert"
	"propguard/checkpoint"
	"propguard/emotion"
	"propguard/featureflag"
	"propguard/manager"
)

// Server wraps the HTTP surface around an account manager.
type Server struct {
	manager *manager.AccountManager
	router  *gin.Engine
	srv     *http.Server
	port    int
}

// NewServer builds the router. Call Start to begin serving.
func NewServer(m *manager.AccountManager, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{manager: m, router: router, port: port}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/admin/feature-flags", s.handleFeatureFlags)

	api := s.router.Group("/api")
	{
		api.GET("/thresholds", s.handleThresholds)
		api.GET("/accounts", s.handleListAccounts)

		acct := api.Group("/accounts/:id")
		{
			acct.GET("", s.handleSnapshot)
			acct.POST("/balance", s.handleRecordBalance)
			acct.POST("/day", s.handleStartNewDay)
			acct.POST("/trades", s.handleRecordTrade)
			acct.GET("/alerts", s.handleAlerts)
			acct.GET("/events", s.handleEvents)
			acct.POST("/checkpoint", s.handleCheckpoint)
			acct.POST("/cascade", s.handleCascade)
			acct.GET("/recovery", s.handleRecovery)
			acct.POST("/checkin", s.handleCheckIn)
			acct.GET("/emotion", s.handleEmotion)
			acct.GET("/phase", s.handlePhase)
			acct.GET("/payouts", s.handlePayouts)
		}
	}
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("✓ API server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleFeatureFlags(c *gin.Context) {
	flags := s.manager.FeatureFlags()

	var update featureflag.Update
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	state := flags.Apply(update)
	c.JSON(http.StatusOK, gin.H{"flags": state})
}

func (s *Server) handleThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"thresholds": alert.Thresholds()})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"accounts": s.manager.AccountIDs()})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	snap, err := s.manager.Snapshot(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

type balanceRequest struct {
	Balance float64 `json:"balance"`
}

func (s *Server) handleRecordBalance(c *gin.Context) {
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mtr, res, err := s.manager.RecordBalance(c.Request.Context(), c.Param("id"), req.Balance)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": mtr, "alerts": res})
}

func (s *Server) handleStartNewDay(c *gin.Context) {
	mtr, res, err := s.manager.StartNewDay(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": mtr, "alerts": res})
}

func (s *Server) handleRecordTrade(c *gin.Context) {
	var trade emotion.TradeRecord
	if err := c.ShouldBindJSON(&trade); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mtr, res, err := s.manager.RecordTrade(c.Request.Context(), c.Param("id"), trade)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": mtr, "alerts": res})
}

func (s *Server) handleAlerts(c *gin.Context) {
	mtr, res, err := s.manager.EvaluateLadder(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": mtr, "alerts": res})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	events, err := s.manager.AlertEvents(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, manager.ErrNoEventHistory) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type checkpointRequest struct {
	Trade        checkpoint.ProposedTrade `json:"trade"`
	Acknowledged bool                     `json:"acknowledged"`
}

func (s *Server) handleCheckpoint(c *gin.Context) {
	var req checkpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	decision, err := s.manager.CheckTrade(c.Param("id"), req.Trade, req.Acknowledged)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

type cascadeRequest struct {
	RiskPerTradePct   float64 `json:"risk_per_trade_pct"`
	LotSizeMultiplier float64 `json:"lot_size_multiplier"`
}

func (s *Server) handleCascade(c *gin.Context) {
	var req cascadeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	proj, err := s.manager.Cascade(c.Param("id"), req.RiskPerTradePct, req.LotSizeMultiplier)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proj)
}

func (s *Server) handleRecovery(c *gin.Context) {
	plan, err := s.manager.RecoveryPlan(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (s *Server) handleCheckIn(c *gin.Context) {
	var checkIn emotion.CheckIn
	if err := c.ShouldBindJSON(&checkIn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.manager.SubmitCheckIn(c.Param("id"), checkIn); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) handleEmotion(c *gin.Context) {
	score, err := s.manager.EmotionScore(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, score)
}

func (s *Server) handlePhase(c *gin.Context) {
	progress, err := s.manager.PhaseProgress(c.Param("id"), time.Now().UTC())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (s *Server) handlePayouts(c *gin.Context) {
	proj, err := s.manager.Payouts(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proj)
}

// statusFor maps manager errors onto HTTP codes. Unknown accounts are 404,
// everything else is treated as a bad request.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, manager.ErrAccountNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
