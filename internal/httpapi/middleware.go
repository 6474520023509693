package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		ev := s.logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = s.logger.Error()
		case status >= http.StatusBadRequest:
			ev = s.logger.Warn()
		}
		ev.Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("workspace", workspaceOf(c)).
			Msg("http request")
	}
}

func (s *Server) workspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := strings.TrimSpace(c.GetHeader(WorkspaceHeader))
		if ws == "" {
			ws = DefaultWorkspace
		}
		if !workspacePattern.MatchString(ws) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "invalid " + WorkspaceHeader,
				"code":  "invalid_workspace",
			})
			return
		}
		c.Set(ctxWorkspace, ws)
		c.Next()
	}
}
