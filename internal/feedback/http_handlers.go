package feedback

import (
	"errors"
	"net/http"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func boolQuery(c *gin.Context, key string) *bool {
	switch c.Query(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func (h Handlers) List(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	f := Filter{
		Category:  Category(c.Query("category")),
		Sentiment: Sentiment(c.Query("sentiment")),
		IsPublic:  boolQuery(c, "is_public"),
		Search:    c.Query("search"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if st := Status(c.Query("status")); st != "" {
		f.Statuses = []Status{st}
	}
	items, err := h.Service.List(c.Request.Context(), caller, f)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) Create(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req CreateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.Create(c.Request.Context(), caller, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h Handlers) Get(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	v, err := h.Service.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) Update(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.Update(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) Delete(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) MarkReviewed(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if _, err := h.Service.MarkReviewed(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback marked as reviewed"})
}

func (h Handlers) Escalate(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	e, err := h.Service.Escalate(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Feedback escalated successfully", "escalation_id": e.ID})
}

func (h Handlers) Responses(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	items, err := h.Service.Responses(c.Request.Context(), caller, c.Param("id"))
	httpapi.RespondList(c, items, err)
}

func (h Handlers) Respond(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req ResponseRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	r, err := h.Service.Respond(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) DeleteResponse(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteResponse(c.Request.Context(), caller, c.Param("id"), c.Param("responseID")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Stats(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	st, err := h.Service.Stats(c.Request.Context(), caller)
	if err != nil {
		httpapi.AbortWithMessage(c, err, "Failed to fetch feedback statistics")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h Handlers) ListEscalations(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListEscalations(c.Request.Context(), caller, EscalationFilter{
		Status:     EscalationStatus(c.Query("status")),
		AssignedTo: c.Query("assigned_to"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) GetEscalation(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	e, err := h.Service.GetEscalation(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) UpdateEscalation(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req EscalationUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	e, err := h.Service.UpdateEscalation(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) AssignEscalationToMe(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	e, err := h.Service.AssignEscalationToMe(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h Handlers) Notes(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	items, err := h.Service.Notes(c.Request.Context(), caller, c.Param("id"))
	httpapi.RespondList(c, items, err)
}

func (h Handlers) AddNote(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req NoteRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	n, err := h.Service.AddNote(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h Handlers) ListSurveys(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListSurveys(c.Request.Context(), caller, SurveyFilter{
		SurveyType: SurveyType(c.Query("survey_type")),
		IsActive:   boolQuery(c, "is_active"),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateSurvey(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req SurveyRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	s, err := h.Service.CreateSurvey(c.Request.Context(), caller, req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) GetSurvey(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	s, err := h.Service.GetSurvey(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) UpdateSurvey(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req SurveyUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	s, err := h.Service.UpdateSurvey(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h Handlers) DeleteSurvey(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteSurvey(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) AddQuestion(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req QuestionRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	q, err := h.Service.AddQuestion(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h Handlers) UpdateQuestion(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	var req QuestionRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	q, err := h.Service.UpdateQuestion(c.Request.Context(), caller, c.Param("id"), c.Param("questionID"), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h Handlers) DeleteQuestion(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	if err := h.Service.DeleteQuestion(c.Request.Context(), caller, c.Param("id"), c.Param("questionID")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Submissions(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.Submissions(c.Request.Context(), caller, c.Param("id"), page.Limit, page.Offset)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) SurveyStats(c *gin.Context) {
	caller, ok := httpapi.Caller(c)
	if !ok {
		return
	}
	st, err := h.Service.SurveyStats(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			httpapi.Abort(c, err)
			return
		}
		httpapi.AbortWithMessage(c, err, "Failed to fetch survey statistics")
		return
	}
	c.JSON(http.StatusOK, st)
}

// Submit records a survey submission; it is mounted both behind auth and publicly.
func (h Handlers) Submit(c *gin.Context) {
	var req SubmissionRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	ip := httpapi.ClientIPFromContext(c.Request.Context())
	if ip == "" {
		ip = c.ClientIP()
	}
	sub, err := h.Service.Submit(c.Request.Context(), c.Param("id"), req, ip, c.Request.UserAgent())
	if err != nil {
		var missing *MissingAnswersError
		if errors.As(err, &missing) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "missing_questions": missing.QuestionIDs})
			return
		}
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h Handlers) PublicList(c *gin.Context) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.PublicList(c.Request.Context(), c.Query("tenant_id"),
		Category(c.Query("category")), Sentiment(c.Query("sentiment")), page.Limit, page.Offset)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) PublicSubmit(c *gin.Context) {
	var req CreateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.SubmitPublic(c.Request.Context(), req)
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Register mounts the authenticated /feedback routes. surveyAdmins gates
// survey management.
func (h Handlers) Register(g *gin.RouterGroup, surveyAdmins gin.HandlerFunc) {
	f := g.Group("/feedback")
	f.GET("", h.List)
	f.POST("", h.Create)
	f.GET("/stats", h.Stats)

	e := f.Group("/escalations")
	e.GET("", h.ListEscalations)
	e.GET("/:id", h.GetEscalation)
	e.PATCH("/:id", h.UpdateEscalation)
	e.POST("/:id/assign-to-me", h.AssignEscalationToMe)
	e.GET("/:id/notes", h.Notes)
	e.POST("/:id/notes", h.AddNote)

	s := f.Group("/surveys")
	s.GET("", surveyAdmins, h.ListSurveys)
	s.POST("", surveyAdmins, h.CreateSurvey)
	s.GET("/:id", surveyAdmins, h.GetSurvey)
	s.PATCH("/:id", surveyAdmins, h.UpdateSurvey)
	s.DELETE("/:id", surveyAdmins, h.DeleteSurvey)
	s.GET("/:id/stats", surveyAdmins, h.SurveyStats)
	s.POST("/:id/questions", surveyAdmins, h.AddQuestion)
	s.PUT("/:id/questions/:questionID", surveyAdmins, h.UpdateQuestion)
	s.DELETE("/:id/questions/:questionID", surveyAdmins, h.DeleteQuestion)
	s.GET("/:id/submissions", surveyAdmins, h.Submissions)
	s.POST("/:id/submissions", h.Submit)

	f.GET("/:id", h.Get)
	f.PATCH("/:id", h.Update)
	f.DELETE("/:id", h.Delete)
	f.POST("/:id/mark-reviewed", h.MarkReviewed)
	f.POST("/:id/escalate", h.Escalate)
	f.GET("/:id/responses", h.Responses)
	f.POST("/:id/responses", h.Respond)
	f.DELETE("/:id/responses/:responseID", h.DeleteResponse)
}

// RegisterPublic mounts the unauthenticated feedback routes. limit throttles
// submissions.
func (h Handlers) RegisterPublic(g *gin.RouterGroup, limit gin.HandlerFunc) {
	p := g.Group("/public")
	p.GET("/feedback", h.PublicList)
	p.POST("/feedback", limit, h.PublicSubmit)
	p.POST("/surveys/:id/submissions", limit, h.Submit)
}
