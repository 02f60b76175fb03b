package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/attendance"
	"github.com/trezcool/ratiba/core/faculty"
	"github.com/trezcool/ratiba/core/handover"
	"github.com/trezcool/ratiba/core/notification"
	"github.com/trezcool/ratiba/core/routine"
)

type (
	// Deps are the services the API exposes.
	Deps struct {
		Faculty       *faculty.Service
		Routines      *routine.Service
		Handovers     *handover.Service
		Attendance    *attendance.Service
		Notifications *notification.Service
	}

	Server struct {
		app        *echo.Echo
		conf       *core.Config
		logger     core.Logger
		deps       Deps
		validate   *validator.Validate
		translator ut.Translator
		errors     chan error
		shutdown   chan os.Signal
	}
)

func NewServer(
	conf *core.Config,
	logger core.Logger,
	deps Deps,
	validate *validator.Validate,
	translator ut.Translator,
) *Server {
	s := &Server{
		app:        echo.New(),
		conf:       conf,
		logger:     logger,
		deps:       deps,
		validate:   validate,
		translator: translator,
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1", middleware.JWTWithConfig(jwtConfig(s.conf)), facultyMiddleware(s.deps.Faculty))
	head := headMiddleware(s.deps.Faculty)

	registerFacultyAPI(v1, head, s.deps.Faculty)
	registerRoutineAPI(v1, s.deps.Routines, s.deps.Faculty, s.validate)
	registerHandoverAPI(v1, head, s.deps.Handovers, s.validate)
	registerScheduleAPI(v1, head, s.deps.Attendance, s.validate, s.conf.Schedule.Location())
	registerNotificationAPI(v1, s.deps.Notifications)
}

// Start listens on the configured host. Listener errors are sent to Errors.
func (s *Server) Start() {
	s.logger.Info("API listening on " + s.conf.Server.Host)
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
