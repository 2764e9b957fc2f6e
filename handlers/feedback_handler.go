package handlers

import (
	"net/http"

	"github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// FeedbackHandler handles feedback form and attestation endpoints.
type FeedbackHandler struct {
	feedbackService FeedbackServiceInterface
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(feedbackService FeedbackServiceInterface) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

func bindJSONOrError(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(errors.ValidationFailed("invalid_request_payload", err.Error()))
		return false
	}
	return true
}

// formIDParam returns the :id path parameter if it is a UUID.
func formIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		_ = c.Error(errors.ValidationFailed("invalid_form_id", "form id must be a UUID"))
		return "", false
	}
	return id, true
}

// CreateFormHandler godoc
// @Summary      Open a feedback form
// @Tags         feedback
// @Accept       json
// @Produce      json
// @Param        body  body      types.CreateFormRequest  true  "Category to select"
// @Success      201   {object}  types.FormSession
// @Failure      400   {object}  middleware.ErrorResponse
// @Router       /feedback/forms [post]
func (h *FeedbackHandler) CreateFormHandler(c *gin.Context) {
	var req types.CreateFormRequest
	if !bindJSONOrError(c, &req) {
		return
	}

	session, err := h.feedbackService.CreateForm(c.Request.Context(), req.Category)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetFormHandler godoc
// @Summary      Get a feedback form
// @Tags         feedback
// @Produce      json
// @Param        id   path      string  true  "Form ID"
// @Success      200  {object}  types.FormSession
// @Failure      404  {object}  middleware.ErrorResponse
// @Router       /feedback/forms/{id} [get]
func (h *FeedbackHandler) GetFormHandler(c *gin.Context) {
	id, ok := formIDParam(c)
	if !ok {
		return
	}

	session, err := h.feedbackService.GetForm(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SelectCategoryHandler switches the form's category and clears every field.
func (h *FeedbackHandler) SelectCategoryHandler(c *gin.Context) {
	id, ok := formIDParam(c)
	if !ok {
		return
	}

	var req types.SelectCategoryRequest
	if !bindJSONOrError(c, &req) {
		return
	}

	session, err := h.feedbackService.SelectCategory(c.Request.Context(), id, req.Category)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateFieldHandler sets a single form field.
func (h *FeedbackHandler) UpdateFieldHandler(c *gin.Context) {
	id, ok := formIDParam(c)
	if !ok {
		return
	}

	var req types.UpdateFieldRequest
	if !bindJSONOrError(c, &req) {
		return
	}

	session, err := h.feedbackService.UpdateField(c.Request.Context(), id, req.Name, req.Value)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// SubmitFormHandler godoc
// @Summary      Submit a feedback form as an attestation
// @Description  Attestation failures are reported in the returned session status, not as HTTP errors.
// @Tags         feedback
// @Produce      json
// @Param        id   path      string  true  "Form ID"
// @Success      200  {object}  types.FormSession
// @Failure      400  {object}  middleware.ErrorResponse
// @Failure      429  {object}  middleware.ErrorResponse
// @Router       /feedback/forms/{id}/submit [post]
func (h *FeedbackHandler) SubmitFormHandler(c *gin.Context) {
	id, ok := formIDParam(c)
	if !ok {
		return
	}

	session, err := h.feedbackService.SubmitForm(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// DiscardFormHandler deletes a form session.
func (h *FeedbackHandler) DiscardFormHandler(c *gin.Context) {
	id, ok := formIDParam(c)
	if !ok {
		return
	}

	if err := h.feedbackService.DiscardForm(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AttestHandler godoc
// @Summary      Attest feedback in one call
// @Tags         feedback
// @Accept       json
// @Produce      json
// @Param        body  body      types.AttestFeedbackRequest  true  "Feedback"
// @Success      200   {object}  types.AttestFeedbackResponse
// @Failure      400   {object}  middleware.ErrorResponse
// @Router       /feedback/attestations [post]
func (h *FeedbackHandler) AttestHandler(c *gin.Context) {
	var req types.AttestFeedbackRequest
	if !bindJSONOrError(c, &req) {
		return
	}

	result, err := h.feedbackService.Attest(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, types.AttestFeedbackResponse{
		Result: result,
		Status: result.StatusText(),
	})
}

// ListSchemasHandler returns the schema declarations and UIDs in use.
func (h *FeedbackHandler) ListSchemasHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.feedbackService.Schemas())
}

// GetAttestationHandler reads an attestation from the registry.
func (h *FeedbackHandler) GetAttestationHandler(c *gin.Context) {
	record, err := h.feedbackService.GetAttestation(c.Request.Context(), c.Param("uid"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, record)
}
