package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	"github.com/standhq/stand/internal/game/typeconfig"
)

func (s *Server) HandleCreateGame(c *gin.Context) {
	var req gamedomain.CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	game, err := s.gameSvc.CreateGame(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, game)
}

func (s *Server) HandleGetGame(c *gin.Context) {
	game, err := s.gameSvc.GetGame(c.Request.Context(), strings.TrimSpace(c.Param("game_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (s *Server) HandleGetConfig(c *gin.Context) {
	blob, err := s.gameSvc.GetConfig(
		c.Request.Context(),
		strings.TrimSpace(c.Param("game_id")),
		c.Param("game_type"),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"config": blob})
}

type setConfigRequest struct {
	Config    json.RawMessage `json:"config"`
	UpdatedAt *time.Time      `json:"updated_at"`
}

func (s *Server) HandleSetConfig(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req setConfigRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Config) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	blob, err := typeconfig.ParseBody(req.Config)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	gameID := strings.TrimSpace(c.Param("game_id"))
	gameType := c.Param("game_type")

	var cfg *gamedomain.TypeConfig
	if req.UpdatedAt != nil {
		cfg, err = s.gameSvc.SetConfigAt(c.Request.Context(), gameID, gameType, blob, *req.UpdatedAt)
	} else {
		cfg, err = s.gameSvc.SetConfig(c.Request.Context(), gameID, gameType, blob)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game_id":    cfg.GameID,
		"game_type":  cfg.GameType,
		"updated_at": cfg.UpdatedAt,
	})
}

func (s *Server) HandleGetBillingState(c *gin.Context) {
	state, err := s.billingSvc.GetState(c.Request.Context(), c.Param("subscription_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}
