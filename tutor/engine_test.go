package tutor_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fabfab/profai/assessment"
	"github.com/fabfab/profai/corpus"
	"github.com/fabfab/profai/knowledge"
	"github.com/fabfab/profai/llm"
	"github.com/fabfab/profai/store"
	"github.com/fabfab/profai/tutor"
)

type stubRanker struct {
	chunks []corpus.Chunk
	err    error
}

func (s *stubRanker) Rank(_ context.Context, _ string, _ int) ([]corpus.Chunk, error) {
	return s.chunks, s.err
}

type stubLLM struct {
	responses []string
	errs      []error
	prompts   []string
}

func (s *stubLLM) Generate(_ context.Context, messages []llm.Message) (string, error) {
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	call := len(s.prompts) - 1
	if call < len(s.errs) && s.errs[call] != nil {
		return "", s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return "", errors.New("no scripted response")
}

type stubStore struct {
	users       map[string]store.User
	reports     map[string]assessment.CompetencyReport
	lessons     map[string]json.RawMessage
	curricula   int
	quizScores  []float64
	progress    store.Progress
	reportErr   error
	lessonErr   error
	progressErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		users:   map[string]store.User{},
		reports: map[string]assessment.CompetencyReport{},
		lessons: map[string]json.RawMessage{},
	}
}

func (s *stubStore) CreateUser(_ context.Context, name string) (store.User, error) {
	user := store.User{ID: name, Name: name, CompetencyScores: map[string]float64{}}
	s.users[user.ID] = user
	return user, nil
}

func (s *stubStore) User(_ context.Context, id string) (store.User, error) {
	user, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (s *stubStore) ApplyReport(_ context.Context, userID, topic string, report assessment.CompetencyReport) error {
	if s.reportErr != nil {
		return s.reportErr
	}
	s.reports[userID+"/"+topic] = report
	return nil
}

func (s *stubStore) SaveLesson(_ context.Context, topic string, content json.RawMessage) (string, error) {
	if s.lessonErr != nil {
		return "", s.lessonErr
	}
	s.lessons[topic] = content
	return "lesson-1", nil
}

func (s *stubStore) LessonByTopic(_ context.Context, topic string) (json.RawMessage, error) {
	content, ok := s.lessons[topic]
	if !ok {
		return nil, store.ErrNotFound
	}
	return content, nil
}

func (s *stubStore) SaveCurriculum(_ context.Context, _, _ string, _ json.RawMessage) (string, error) {
	s.curricula++
	return "curriculum-1", nil
}

func (s *stubStore) RecordQuizScore(_ context.Context, _ string, score float64) (store.Progress, error) {
	s.quizScores = append(s.quizScores, score)
	return s.progress, nil
}

func (s *stubStore) MarkLessonCompleted(_ context.Context, _ string) error { return nil }

func (s *stubStore) Progress(_ context.Context, userID string) (store.Progress, error) {
	if s.progressErr != nil {
		return store.Progress{}, s.progressErr
	}
	p := s.progress
	p.UserID = userID
	return p, nil
}

type stubGraph struct {
	synced      int
	err         error
	insights    []knowledge.ConceptInsight
	insightsErr error
}

func (g *stubGraph) SyncAssessment(_ context.Context, _, _ string, _ assessment.CompetencyReport) error {
	g.synced++
	return g.err
}

func (g *stubGraph) WeakestConcepts(_ context.Context, _ string, _ int) ([]knowledge.ConceptInsight, error) {
	return g.insights, g.insightsErr
}

var _ tutor.ConceptGraph = (*stubGraph)(nil)

type stubStreamLLM struct {
	stubLLM
	chunks []string
}

func (s *stubStreamLLM) GenerateStream(_ context.Context, messages []llm.Message, fn func(string) error) error {
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	for _, chunk := range s.chunks {
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

var _ llm.StreamClient = (*stubStreamLLM)(nil)

func newEngine(model *stubLLM, st *stubStore, graph tutor.ConceptGraph) *tutor.Engine {
	return tutor.NewEngine(tutor.Deps{
		Ranker: &stubRanker{},
		LLM:    model,
		Store:  st,
		Graph:  graph,
	}, tutor.Params{})
}

const questionJSON = `[{"question": "What is a gradient?", "options": ["A) a", "B) b"], "correct": "A", "concept": "calculus", "difficulty": 1}]`

func TestGenerateInitialAssessmentParsesFencedJSON(t *testing.T) {
	model := &stubLLM{responses: []string{"```json\n" + questionJSON + "\n```"}}
	engine := newEngine(model, newStubStore(), nil)

	questions, err := engine.GenerateInitialAssessment(context.Background(), "calculus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 1 || questions[0].Concept != "calculus" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
}

func TestGenerateAdaptiveAssessmentTargetsMissedConcepts(t *testing.T) {
	model := &stubLLM{responses: []string{questionJSON}}
	engine := newEngine(model, newStubStore(), nil)

	initial := []assessment.Question{
		{Text: "q0", Correct: "A", Concept: "linear_algebra"},
		{Text: "q1", Correct: "B", Concept: "probability"},
	}
	answers := assessment.AnswerSet{"0": "A", "1": "C"}

	if _, err := engine.GenerateAdaptiveAssessment(context.Background(), "math", initial, answers); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := model.prompts[0]
	if !strings.Contains(prompt, "probability") {
		t.Fatalf("prompt does not target missed concept: %s", prompt)
	}
	if strings.Contains(prompt, "linear_algebra") {
		t.Fatalf("prompt targets a concept that was answered correctly: %s", prompt)
	}
}

func TestCompleteAssessmentPersistsReportAndSurvivesGraphFailure(t *testing.T) {
	st := newStubStore()
	graph := &stubGraph{err: errors.New("neo4j down")}
	curriculum := `{"topic": "math", "lessons": [{"title": "Basics"}]}`
	model := &stubLLM{responses: []string{curriculum}}
	engine := newEngine(model, st, graph)

	questions := []assessment.Question{{Text: "q", Correct: "A", Concept: "algebra"}}
	report, err := engine.CompleteAssessment(context.Background(), "u1", "math",
		questions, assessment.AnswerSet{"0": "B"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := st.reports["u1/math"]; !ok {
		t.Fatal("report was not persisted")
	}
	if graph.synced != 1 {
		t.Fatalf("graph sync calls = %d, want 1", graph.synced)
	}
	if len(report.KnowledgeGaps) != 1 || report.KnowledgeGaps[0] != "algebra" {
		t.Fatalf("unexpected gaps: %v", report.KnowledgeGaps)
	}
	if st.curricula != 1 {
		t.Fatalf("curricula saved = %d, want 1", st.curricula)
	}
}

func TestCompleteAssessmentEmpty(t *testing.T) {
	engine := newEngine(&stubLLM{}, newStubStore(), nil)
	_, err := engine.CompleteAssessment(context.Background(), "u1", "math", nil, nil, nil, nil)
	if !errors.Is(err, assessment.ErrEmptyAssessment) {
		t.Fatalf("got %v, want ErrEmptyAssessment", err)
	}
}

func TestGenerateCurriculumConsultsConceptGraph(t *testing.T) {
	st := newStubStore()
	graph := &stubGraph{insights: []knowledge.ConceptInsight{
		{Concept: "backpropagation", Accuracy: 0.25, Gap: true},
		{Concept: "regularization", Accuracy: 0.5, Gap: true},
	}}
	model := &stubLLM{responses: []string{`{"topic": "math", "lessons": [{"title": "Basics"}]}`}}
	engine := newEngine(model, st, graph)

	if _, err := engine.GenerateCurriculum(context.Background(), "u1", "math", []string{"calculus"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := model.prompts[0]
	if !strings.Contains(prompt, "backpropagation (25% accuracy)") {
		t.Fatalf("prompt does not carry graph insights: %s", prompt)
	}
	if !strings.Contains(prompt, "regularization (50% accuracy)") {
		t.Fatalf("prompt does not carry all graph insights: %s", prompt)
	}
}

func TestGenerateCurriculumSurvivesInsightFailure(t *testing.T) {
	st := newStubStore()
	graph := &stubGraph{insightsErr: errors.New("neo4j down")}
	model := &stubLLM{responses: []string{`{"topic": "math", "lessons": [{"title": "Basics"}]}`}}
	engine := newEngine(model, st, graph)

	if _, err := engine.GenerateCurriculum(context.Background(), "u1", "math", []string{"calculus"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(model.prompts[0], "accuracy)") {
		t.Fatalf("prompt carries insights despite lookup failure: %s", model.prompts[0])
	}
	if st.curricula != 1 {
		t.Fatalf("curricula saved = %d, want 1", st.curricula)
	}
}

func TestExplainStreamsWhenModelSupportsIt(t *testing.T) {
	model := &stubStreamLLM{chunks: []string{"The chain rule ", "", "drives backpropagation."}}
	engine := tutor.NewEngine(tutor.Deps{
		Ranker: &stubRanker{},
		LLM:    model,
		Store:  newStubStore(),
	}, tutor.Params{})

	var got []string
	err := engine.Explain(context.Background(), "neural networks", "how does backpropagation work?",
		func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty chunks are dropped before reaching the caller.
	want := []string{"The chain rule ", "drives backpropagation."}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !strings.Contains(model.prompts[0], "how does backpropagation work?") {
		t.Fatalf("prompt does not carry the question: %s", model.prompts[0])
	}
}

func TestExplainFallsBackToGenerate(t *testing.T) {
	model := &stubLLM{responses: []string{"Backpropagation applies the chain rule."}}
	engine := newEngine(model, newStubStore(), nil)

	var got []string
	err := engine.Explain(context.Background(), "neural networks", "what is backpropagation?",
		func(chunk string) error {
			got = append(got, chunk)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "Backpropagation applies the chain rule." {
		t.Fatalf("expected the whole answer in one call, got %v", got)
	}
}

func TestGenerateLessonFallsBackOnModelError(t *testing.T) {
	st := newStubStore()
	st.users["u1"] = store.User{ID: "u1", CompetencyScores: map[string]float64{}}
	model := &stubLLM{errs: []error{errors.New("timeout")}}
	engine := newEngine(model, st, nil)

	lesson, err := engine.GenerateLesson(context.Background(), "u1", "neural networks")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Topic != "neural networks" {
		t.Fatalf("unexpected topic: %q", lesson.Topic)
	}
	if len(lesson.Chunks) != 4 {
		t.Fatalf("fallback lesson has %d chunks, want 4", len(lesson.Chunks))
	}
}

func TestGenerateLessonPrefersCachedLessonOnDecodeFailure(t *testing.T) {
	st := newStubStore()
	st.users["u1"] = store.User{ID: "u1", CompetencyScores: map[string]float64{}}
	cached := tutor.Lesson{Topic: "calculus", Overview: "cached overview"}
	payload, _ := json.Marshal(cached)
	st.lessons["calculus"] = payload

	model := &stubLLM{responses: []string{"sorry, I cannot produce JSON"}}
	engine := newEngine(model, st, nil)

	lesson, err := engine.GenerateLesson(context.Background(), "u1", "calculus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Overview != "cached overview" {
		t.Fatalf("expected cached lesson, got %+v", lesson)
	}
}

func TestGenerateLessonSavesGeneratedContent(t *testing.T) {
	st := newStubStore()
	st.users["u1"] = store.User{ID: "u1", CompetencyScores: map[string]float64{"calculus": 6}}
	generated := `{"topic": "calculus", "overview": "fresh", "chunks": [], "key_takeaways": []}`
	model := &stubLLM{responses: []string{generated}}
	engine := newEngine(model, st, nil)

	lesson, err := engine.GenerateLesson(context.Background(), "u1", "calculus")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lesson.Overview != "fresh" {
		t.Fatalf("unexpected lesson: %+v", lesson)
	}
	if _, ok := st.lessons["calculus"]; !ok {
		t.Fatal("generated lesson was not saved")
	}
	if !strings.Contains(model.prompts[0], "6.0/10") {
		t.Fatalf("prompt does not carry competency level: %s", model.prompts[0])
	}
}

func TestEvaluateLessonQuiz(t *testing.T) {
	st := newStubStore()
	engine := newEngine(&stubLLM{}, st, nil)

	questions := []assessment.Question{
		{Correct: "A"}, {Correct: "B"}, {Correct: "C"}, {Correct: "D"},
	}
	answers := assessment.AnswerSet{"0": "A", "1": "B", "2": "C", "3": "A"}

	result, err := engine.EvaluateLessonQuiz(context.Background(), "u1", questions, answers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 7.5 || !result.Passed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Percentage != 75 {
		t.Fatalf("percentage = %v, want 75", result.Percentage)
	}
	if !strings.HasPrefix(result.Feedback, "Good work!") {
		t.Fatalf("unexpected feedback: %q", result.Feedback)
	}
	if len(st.quizScores) != 1 || st.quizScores[0] != 7.5 {
		t.Fatalf("score not recorded: %v", st.quizScores)
	}
}

func TestEvaluateLessonQuizEmpty(t *testing.T) {
	engine := newEngine(&stubLLM{}, newStubStore(), nil)
	_, err := engine.EvaluateLessonQuiz(context.Background(), "u1", nil, nil)
	if !errors.Is(err, assessment.ErrEmptyAssessment) {
		t.Fatalf("got %v, want ErrEmptyAssessment", err)
	}
}

func TestProgressRecommendations(t *testing.T) {
	st := newStubStore()
	st.users["u1"] = store.User{ID: "u1", Name: "Ada", TotalLessons: 5}
	st.progress = store.Progress{LessonsCompleted: 0}

	engine := newEngine(&stubLLM{}, st, nil)
	report, err := engine.Progress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "Start with your first lesson!" {
		t.Fatalf("unexpected recommendations: %v", report.Recommendations)
	}

	st.progress = store.Progress{LessonsCompleted: 2, AverageQuizScore: 5, QuizScores: []float64{4, 6}}
	report, err = engine.Progress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Recommendations) != 1 || report.Recommendations[0] != "Review previous lessons to strengthen understanding" {
		t.Fatalf("unexpected recommendations: %v", report.Recommendations)
	}
}
