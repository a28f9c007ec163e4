package server

import (
	"context"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"golang-em-checker/internal/reconciler"
	"golang-em-checker/internal/reporter"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// Reconciler runs one reconciliation over two streamed tables
type Reconciler interface {
	ProcessSources(ctx context.Context, bill, em reconciler.Source) (*reconciler.Report, error)
}

// ReconciliationHandler serves reconciliation runs over HTTP
type ReconciliationHandler struct {
	service Reconciler
	logger  logger.Logger
}

// NewReconciliationHandler creates a handler backed by the given service
func NewReconciliationHandler(service Reconciler, log logger.Logger) *ReconciliationHandler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &ReconciliationHandler{
		service: service,
		logger:  log.WithComponent("http"),
	}
}

// Health reports that the service is up
func (h *ReconciliationHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Reconcile runs a reconciliation over the uploaded "bill" and "em" files
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	billHeader, err := c.FormFile("bill")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bill file required"})
		return
	}
	emHeader, err := c.FormFile("em")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "em file required"})
		return
	}

	bill, err := billHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read bill file"})
		return
	}
	defer bill.Close()

	em, err := emHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read em file"})
		return
	}
	defer em.Close()

	h.logger.WithFields(logger.Fields{
		"bill_file": billHeader.Filename,
		"bill_size": billHeader.Size,
		"em_file":   emHeader.Filename,
		"em_size":   emHeader.Size,
	}).Info("Received reconciliation upload")

	report, err := h.service.ProcessSources(c.Request.Context(),
		source(billHeader, bill),
		source(emHeader, em),
	)
	if err != nil {
		h.logger.WithError(err).Warn("Reconciliation request failed")
		c.JSON(statusFor(err), errorBody(err))
		return
	}

	c.JSON(http.StatusOK, reporter.BuildDocument(report))
}

func source(header *multipart.FileHeader, file multipart.File) reconciler.Source {
	return reconciler.Source{Name: header.Filename, Reader: file}
}

// statusFor maps table loading failures to 422 and anything else to 500
func statusFor(err error) int {
	reconcilerErr, ok := apperrors.AsReconcilerError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch reconcilerErr.Category {
	case apperrors.CategoryFile, apperrors.CategoryParse,
		apperrors.CategoryValidation, apperrors.CategoryConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}
	if reconcilerErr, ok := apperrors.AsReconcilerError(err); ok {
		body["code"] = reconcilerErr.Code
		if reconcilerErr.Suggestion != "" {
			body["suggestion"] = reconcilerErr.Suggestion
		}
	}
	return body
}
