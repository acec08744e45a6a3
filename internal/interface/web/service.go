// Package web is a thin JSON adapter around the application services. No
// business rule lives here: handlers bind the request shape, call the
// operation and translate the error taxonomy into HTTP status codes.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/taskpaylabs/taskpayd/internal/core/application"
	"github.com/taskpaylabs/taskpayd/internal/core/domain"
	"github.com/taskpaylabs/taskpayd/internal/core/ports"
)

type Service struct {
	server *http.Server
}

func NewService(
	port uint32, taskSvc *application.TaskService, responseSvc *application.ResponseService,
) *Service {
	handlers := &handlers{taskSvc, responseSvc}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	v1.POST("/tasks", handlers.createTask)
	v1.GET("/tasks/:id", handlers.getTask)
	v1.POST("/tasks/:id/fund", handlers.fundTask)
	v1.POST("/tasks/:id/cancel", handlers.cancelTask)
	v1.POST("/tasks/query", handlers.listTasks)
	v1.POST("/tasks/:id/responses/query", handlers.listResponses)

	v1.POST("/responses", handlers.submitResponse)
	v1.GET("/responses/:id", handlers.getResponse)
	v1.POST("/responses/:id/decision", handlers.decideResponse)
	v1.POST("/responses/:id/settlement", handlers.settlement)

	return &Service{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		},
	}
}

func (s *Service) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("web server exited")
		}
	}()
	log.Infof("web interface listening on %s", s.server.Addr)
}

func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// nolint:all
	s.server.Shutdown(ctx)
}

// statusFromErr maps the core error taxonomy onto HTTP status codes.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ports.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFromErr(err)
	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		// no raw infrastructure error text crosses the boundary
		log.WithError(err).Error("request failed")
		body = gin.H{"error": domain.ErrInternal.Error()}
	}
	c.AbortWithStatusJSON(status, body)
}
