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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/abonnement"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/note"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/professeur"
	"github.com/maraakiz/maraakiz/core/ressource"
	"github.com/maraakiz/maraakiz/core/user"
)

// ServerDeps holds everything the API needs. It can be filled by hand or injected by dig.
type ServerDeps struct {
	dig.In

	Conf           *core.Config
	Logger         core.Logger
	Registerer     prometheus.Registerer `optional:"true"`
	DisableReqLogs bool                  `name:"disableReqLogs" optional:"true"`

	Validate   *validator.Validate
	Translator ut.Translator

	UserSvc       user.Service
	MerkezSvc     merkez.Service
	ProfesseurSvc professeur.Service
	EleveSvc      eleve.Service
	CoursSvc      cours.Service
	PaiementSvc   paiement.Service
	MessageSvc    message.Service
	NoteSvc       note.Service
	RessourceSvc  ressource.Service
	AbonnementSvc abonnement.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.NewRegistry()
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSAllowOrigins,
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch,
			http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	s.app.Use(metricsMiddleware(newMetrics(s.deps.Registerer)))
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	if conf.Uploads.BaseURL != "" && conf.Uploads.Dir != "" {
		s.app.Static(conf.Uploads.BaseURL, conf.Uploads.Dir)
	}
	s.app.GET("/", home)
	s.app.GET("/health", s.health)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))
	auth := []echo.MiddlewareFunc{jwt, userMiddleware(s.deps.UserSvc)}

	registerUserAPI(g, auth, s.deps)
	registerProfileAPI(g, auth, s.deps)
	registerMerkezAPI(g, auth, s.deps)
	registerProfesseurAPI(g, auth, s.deps)
	registerEleveAPI(g, auth, s.deps)
	registerCoursAPI(g, auth, s.deps)
	registerPaiementAPI(g, auth, s.deps)
	registerMessageAPI(g, auth, s.deps)
	registerNoteAPI(g, auth, s.deps)
	registerRessourceAPI(g, auth, s.deps)
	registerAbonnementAPI(g, auth, s.deps)
}

// Start listens on the configured host. Listening errors are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

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

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Maraakiz API!")
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "name": s.deps.Conf.AppName})
}
