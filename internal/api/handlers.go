package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btc-node-dashboard/internal/config"
	"github.com/btc-node-dashboard/internal/peers"
	"github.com/btc-node-dashboard/internal/viewstate"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	blockErrorPrefix = "Error loading block data: "
	peerErrorPrefix  = "Error loading peer data: "
)

// viewResponse is the JSON form of one view state
type viewResponse struct {
	State   string      `json:"state"`
	Error   string      `json:"error,omitempty"`
	Banner  string      `json:"banner,omitempty"`
	Updated time.Time   `json:"updated"`
	Data    interface{} `json:"data,omitempty"`
}

type peerPageResponse struct {
	peers.Page
	Columns []peers.Column `json:"columns"`
}

func newViewResponse(phase viewstate.Phase, message, prefix string, updated time.Time) viewResponse {
	r := viewResponse{State: phase.String(), Updated: updated}
	if phase == viewstate.Error {
		r.Error = message
		r.Banner = prefix + message
	}
	return r
}

// statusFor maps a view phase to the HTTP status of its JSON endpoint
func statusFor(phase viewstate.Phase) int {
	switch phase {
	case viewstate.Ready:
		return http.StatusOK
	case viewstate.Error:
		return http.StatusBadGateway
	default:
		return http.StatusAccepted
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleDashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RenderWait())
	defer cancel()
	if err := s.views.Settle(ctx); err != nil {
		log.WithError(err).Debug("Rendering dashboard before views settled")
	}

	page, pageSize, err := s.pageParams(c)
	if err != nil {
		page, pageSize = 1, s.config.API.DefaultPageSize
	}

	data, err := s.pages.dashboard(s.views.BlockState(), s.views.PeerState(), page, pageSize)
	if err != nil {
		log.Errorf("Failed to render dashboard: %v", err)
		c.String(http.StatusInternalServerError, "failed to render dashboard")
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", data)
}

func (s *Server) handleBlockStats(c *gin.Context) {
	st := s.views.BlockState()

	resp := newViewResponse(st.Phase, st.Message, blockErrorPrefix, st.Updated)
	if st.Phase == viewstate.Ready {
		resp.Data = st.Data
	}

	c.JSON(statusFor(st.Phase), resp)
}

func (s *Server) handlePeers(c *gin.Context) {
	page, pageSize, err := s.pageParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	st := s.views.PeerState()

	resp := newViewResponse(st.Phase, st.Message, peerErrorPrefix, st.Updated)
	if st.Phase == viewstate.Ready {
		resp.Data = peerPageResponse{
			Page:    peers.Paginate(st.Data.Rows, page, pageSize),
			Columns: st.Data.Columns,
		}
	}

	c.JSON(statusFor(st.Phase), resp)
}

func (s *Server) handleColumns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"columns":   peers.Columns(),
		"pageSizes": config.PageSizes,
	})
}

func (s *Server) handleReload(c *gin.Context) {
	log.Info("Dashboard reload triggered via API")

	// The new mount outlives this request
	if err := s.views.Remount(context.WithoutCancel(c.Request.Context())); err != nil {
		log.Errorf("Reload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Reload failed",
		})
		return
	}

	if strings.Contains(c.GetHeader("Accept"), "text/html") {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Reload triggered",
	})
}

var (
	errInvalidPage     = errors.New("Invalid page parameter")
	errInvalidPageSize = errors.New("Invalid pageSize parameter")
)

// pageParams reads ?page= and ?pageSize=, defaulting to the first page of
// the configured size.
func (s *Server) pageParams(c *gin.Context) (int, int, error) {
	page := 1
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, errInvalidPage
		}
		page = n
	}

	pageSize := s.config.API.DefaultPageSize
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !config.ValidPageSize(n) {
			return 0, 0, errInvalidPageSize
		}
		pageSize = n
	}

	return page, pageSize, nil
}
