// Package api exposes the tutoring workflows over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fabfab/profai/assessment"
	"github.com/fabfab/profai/corpus"
	"github.com/fabfab/profai/sessions"
	"github.com/fabfab/profai/store"
	"github.com/fabfab/profai/tutor"
)

// Server routes HTTP requests to the tutor engine and the stores. Sessions
// may be nil when Redis is not configured; the session endpoints then report
// service unavailable.
type Server struct {
	engine   *tutor.Engine
	store    store.Store
	sessions *sessions.Manager
	ranker   corpus.Ranker
	logger   *log.Logger
	handler  http.Handler
}

func NewServer(engine *tutor.Engine, st store.Store, mgr *sessions.Manager, ranker corpus.Ranker, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		engine:   engine,
		store:    st,
		sessions: mgr,
		ranker:   ranker,
		logger:   logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)

		r.Post("/assessment/initial", s.handleInitialAssessment)
		r.Post("/assessment/adaptive", s.handleAdaptiveAssessment)
		r.Post("/assessment/complete", s.handleCompleteAssessment)

		r.Post("/curriculum/generate", s.handleGenerateCurriculum)

		r.Post("/lesson/generate", s.handleGenerateLesson)
		r.Post("/lesson/quiz", s.handleLessonQuiz)
		r.Post("/lesson/complete", s.handleCompleteLesson)
		r.Post("/quiz/submit", s.handleSubmitQuiz)

		r.Get("/progress/{userID}", s.handleProgress)

		r.Post("/session/start", s.handleStartSession)
		r.Post("/session/end", s.handleEndSession)
		r.Get("/session/active/{userID}", s.handleActiveSession)

		r.Post("/explain", s.handleExplain)
		r.Post("/retrieve", s.handleRetrieve)
	})

	return r
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

type createUserRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, userResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse(user))
}

type userPayload struct {
	ID                string              `json:"id"`
	Name              string              `json:"name"`
	CompetencyScores  map[string]float64  `json:"competency_scores"`
	KnowledgeGaps     map[string][]string `json:"knowledge_gaps"`
	StrongAreas       map[string][]string `json:"strong_areas"`
	LearningPath      []string            `json:"learning_path"`
	CurrentCurriculum string              `json:"current_curriculum,omitempty"`
	TotalLessons      int                 `json:"total_lessons"`
}

func userResponse(user store.User) userPayload {
	return userPayload{
		ID:                user.ID,
		Name:              user.Name,
		CompetencyScores:  user.CompetencyScores,
		KnowledgeGaps:     user.KnowledgeGaps,
		StrongAreas:       user.StrongAreas,
		LearningPath:      user.LearningPath,
		CurrentCurriculum: user.CurrentCurriculum,
		TotalLessons:      user.TotalLessons,
	}
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type assessmentResponse struct {
	Questions      []assessment.Question `json:"questions"`
	Type           string                `json:"type"`
	TotalQuestions int                   `json:"total_questions"`
}

func (s *Server) handleInitialAssessment(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("topic is required"))
		return
	}

	questions, err := s.engine.GenerateInitialAssessment(r.Context(), req.Topic)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assessmentResponse{
		Questions:      questions,
		Type:           "initial",
		TotalQuestions: len(questions),
	})
}

type adaptiveAssessmentRequest struct {
	Topic     string                `json:"topic"`
	Questions []assessment.Question `json:"questions"`
	Answers   assessment.AnswerSet  `json:"answers"`
}

func (s *Server) handleAdaptiveAssessment(w http.ResponseWriter, r *http.Request) {
	var req adaptiveAssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("topic is required"))
		return
	}

	questions, err := s.engine.GenerateAdaptiveAssessment(r.Context(), req.Topic, req.Questions, req.Answers)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assessmentResponse{
		Questions:      questions,
		Type:           "adaptive",
		TotalQuestions: len(questions),
	})
}

type completeAssessmentRequest struct {
	UserID            string                `json:"user_id"`
	Topic             string                `json:"topic"`
	InitialQuestions  []assessment.Question `json:"initial_questions"`
	InitialAnswers    assessment.AnswerSet  `json:"initial_answers"`
	AdaptiveQuestions []assessment.Question `json:"adaptive_questions"`
	AdaptiveAnswers   assessment.AnswerSet  `json:"adaptive_answers"`
}

func (s *Server) handleCompleteAssessment(w http.ResponseWriter, r *http.Request) {
	var req completeAssessmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id and topic are required"))
		return
	}

	report, err := s.engine.CompleteAssessment(r.Context(), req.UserID, req.Topic,
		req.InitialQuestions, req.InitialAnswers, req.AdaptiveQuestions, req.AdaptiveAnswers)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type curriculumRequest struct {
	UserID        string   `json:"user_id"`
	Topic         string   `json:"topic"`
	KnowledgeGaps []string `json:"knowledge_gaps"`
}

func (s *Server) handleGenerateCurriculum(w http.ResponseWriter, r *http.Request) {
	var req curriculumRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id and topic are required"))
		return
	}

	curriculum, err := s.engine.GenerateCurriculum(r.Context(), req.UserID, req.Topic, req.KnowledgeGaps)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, curriculum)
}

type lessonRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

func (s *Server) handleGenerateLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id and topic are required"))
		return
	}

	lesson, err := s.engine.GenerateLesson(r.Context(), req.UserID, req.Topic)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, lesson)
}

type lessonQuizRequest struct {
	Lesson tutor.Lesson `json:"lesson"`
}

func (s *Server) handleLessonQuiz(w http.ResponseWriter, r *http.Request) {
	var req lessonQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	questions, err := s.engine.GenerateLessonQuiz(r.Context(), req.Lesson)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, assessmentResponse{
		Questions:      questions,
		Type:           "quiz",
		TotalQuestions: len(questions),
	})
}

type submitQuizRequest struct {
	UserID    string                `json:"user_id"`
	Questions []assessment.Question `json:"questions"`
	Answers   assessment.AnswerSet  `json:"answers"`
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	result, err := s.engine.EvaluateLessonQuiz(r.Context(), req.UserID, req.Questions, req.Answers)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type completeLessonRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCompleteLesson(w http.ResponseWriter, r *http.Request) {
	var req completeLessonRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}

	if err := s.engine.CompleteLesson(r.Context(), req.UserID); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "lesson completed"})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Progress(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("session store not configured"))
		return
	}

	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == "" || req.Topic == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("user_id and topic are required"))
		return
	}

	session, err := s.sessions.Start(r.Context(), req.UserID, req.Topic)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, session)
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("session store not configured"))
		return
	}

	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.SessionID == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("session_id is required"))
		return
	}

	session, err := s.sessions.End(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("session store not configured"))
		return
	}

	session, err := s.sessions.Active(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

type explainRequest struct {
	Topic    string `json:"topic"`
	Question string `json:"question"`
}

// handleExplain streams the model's answer as plain text, flushing each chunk
// as it arrives. Errors after the first chunk can only be logged; the status
// line is already on the wire.
func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Topic == "" || req.Question == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("topic and question are required"))
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false

	err := s.engine.Explain(r.Context(), req.Topic, req.Question, func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		if !started {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.logger.Printf("explain stream aborted: %v", err)
	}
}

type retrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type retrieveResponse struct {
	Chunks  []corpus.Chunk `json:"chunks"`
	Context string         `json:"context"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("query is required"))
		return
	}
	if req.K <= 0 {
		req.K = 3
	}

	chunks, err := s.ranker.Rank(r.Context(), req.Query, req.K)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, retrieveResponse{
		Chunks:  chunks,
		Context: corpus.BuildContext(chunks),
	})
}

// statusFor maps well-known error values to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assessment.ErrEmptyAssessment):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
