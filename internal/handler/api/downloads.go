package api

import (
	"context"
	"errors"

	models "HistPull/internal/domain/models"
	"HistPull/internal/repository"
	"HistPull/internal/usecase"
	xhttp "HistPull/pkg/http"
	xlogger "HistPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DownloadRunner is the part of the download service the API drives.
type DownloadRunner interface {
	Start(ctx context.Context, req models.DownloadRequest) (string, error)
	Get(ctx context.Context, runID string) (*models.BatchReport, error)
	Latest(ctx context.Context) (*models.BatchReport, error)
}

// DownloadsHandler exposes batch runs over HTTP.
type DownloadsHandler struct {
	logger *xlogger.Logger
	runner DownloadRunner
}

func NewDownloadsHandler(logger *xlogger.Logger, runner DownloadRunner) *DownloadsHandler {
	return &DownloadsHandler{logger: logger, runner: runner}
}

func (h *DownloadsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/downloads")
	g.POST("", h.Create)
	g.GET("/latest", h.Latest)
	g.GET("/:id", h.Get)
}

// Create queues a batch run and returns its id.
func (h *DownloadsHandler) Create(c echo.Context) error {
	req := &models.DownloadHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dreq, err := req.ToDomain()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	runID, err := h.runner.Start(c.Request().Context(), dreq)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidRequest) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("start download error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not start download").WithError(err))
	}
	h.logger.Info("download queued", xlogger.String("run_id", runID))
	return xhttp.AcceptedResponse(c, models.DownloadAccepted{RunID: runID})
}

func (h *DownloadsHandler) Get(c echo.Context) error {
	id := c.Param("id")
	report, err := h.runner.Get(c.Request().Context(), id)
	return h.reportResponse(c, report, err, id)
}

func (h *DownloadsHandler) Latest(c echo.Context) error {
	report, err := h.runner.Latest(c.Request().Context())
	return h.reportResponse(c, report, err, "latest")
}

func (h *DownloadsHandler) reportResponse(c echo.Context, report *models.BatchReport, err error, id string) error {
	if err != nil {
		if errors.Is(err, repository.ErrReportNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("report %s not found", id))
		}
		h.logger.Error("load report error", xlogger.String("run_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load report").WithError(err))
	}
	return xhttp.SuccessResponse(c, report)
}
