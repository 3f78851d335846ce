package routes

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	servermiddleware "github.com/tggeco/challenge-api/cmd/server/internal/middleware"
	"github.com/tggeco/challenge-api/internal/validator"
)

// Largest upload is a 10 MB document plus multipart framing
const bodyLimit = "12M"

func BuildEcho(logger *slog.Logger) (*echo.Echo, error) {
	e := echo.New()

	validate := validator.Create()
	e.Validator = &validate

	e.Pre(
		middleware.AddTrailingSlashWithConfig(
			middleware.TrailingSlashConfig{Skipper: func(c echo.Context) bool {
				return strings.Contains(c.Request().URL.Path, "swagger")
			}},
		),
	)

	e.Use(
		otelecho.Middleware("challenge-api"),
		slogecho.NewWithConfig(logger, slogecho.Config{}),
		middleware.Recover(),
		middleware.BodyLimit(bodyLimit),
		servermiddleware.RequestTime("time", time.Now),
	)

	e.GET("/health/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e, nil
}
