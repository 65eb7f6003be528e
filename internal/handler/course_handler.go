package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/decode-labs/decode-api/internal/models"
	"github.com/decode-labs/decode-api/internal/service"
	appErrors "github.com/decode-labs/decode-api/pkg/errors"
	"github.com/decode-labs/decode-api/pkg/response"
)

// CourseHandler exposes the course catalog and enrollment endpoints.
type CourseHandler struct {
	courses    *service.CourseService
	completion *service.CompletionService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService, completion *service.CompletionService) *CourseHandler {
	return &CourseHandler{courses: courses, completion: completion}
}

// List godoc
// @Summary List published courses
// @Tags Courses
// @Produce json
// @Param difficulty query string false "Filter by difficulty"
// @Param search query string false "Search in title"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Difficulty = models.CourseDifficulty(c.Query("difficulty"))
	filter.Search = c.Query("search")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	courses, total, err := h.courses.ListCourses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get a course with its modules
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	userID := ""
	if claims := claimsFromContext(c); claims != nil {
		userID = claims.UserID
	}
	detail, err := h.courses.GetCourse(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Enroll godoc
// @Summary Enroll in a course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.courses.Enroll(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// UpdateProgress godoc
// @Summary Update course progress
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body handler.progressRequest true "Progress payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/progress [put]
func (h *CourseHandler) UpdateProgress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	enrollment, err := h.courses.UpdateProgress(c.Request.Context(), claims.UserID, c.Param("id"), req.Progress)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

type progressRequest struct {
	Progress int `json:"progress"`
}

// GetQuiz godoc
// @Summary Get the course quiz
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/quiz [get]
func (h *CourseHandler) GetQuiz(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	quiz, err := h.courses.GetQuiz(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// SubmitQuiz godoc
// @Summary Submit quiz answers for grading
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body handler.submitQuizRequest true "Answers keyed by question id"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/quiz/submit [post]
func (h *CourseHandler) SubmitQuiz(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req submitQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.completion.SubmitQuiz(c.Request.Context(), claims.UserID, c.Param("id"), req.Answers)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

type submitQuizRequest struct {
	Answers models.AnswerMap `json:"answers" binding:"required"`
}

// MyEnrollments godoc
// @Summary List the caller's enrollments
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *CourseHandler) MyEnrollments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.courses.MyEnrollments(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}
