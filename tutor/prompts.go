package tutor

import (
	"fmt"
	"strings"
)

func initialAssessmentPrompt(topic, context string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert AI tutor. Use the following course material as context to create exactly %d multiple choice questions for an initial assessment on %q.\n\n", count, topic)
	if context != "" {
		fmt.Fprintf(&b, "Course context (from real lecture notes):\n%s\n\n", context)
	}
	fmt.Fprintf(&b, `These questions should:
1. Cover different fundamental aspects of %s
2. Range from basic to intermediate difficulty
3. Help identify what areas the student knows vs doesn't know
4. Be diagnostic rather than just testing

Return ONLY a JSON array with this exact format:
[
    {
        "question": "Question text here",
        "options": ["A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"],
        "correct": "A",
        "concept": "fundamental_concept_being_tested",
        "difficulty": 1
    }
]`, topic)
	return b.String()
}

func adaptiveAssessmentPrompt(topic, context string, count int, weakConcepts []string) string {
	focus := "the areas the first round showed weakness in"
	if len(weakConcepts) > 0 {
		focus = strings.Join(weakConcepts, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert AI tutor. Create exactly %d follow-up multiple choice questions on %q that probe deeper into: %s.\n\n", count, topic, focus)
	if context != "" {
		fmt.Fprintf(&b, "Course context (from real lecture notes):\n%s\n\n", context)
	}
	b.WriteString(`These questions should:
1. Target the weak concepts listed above
2. Be slightly harder than an initial diagnostic
3. Distinguish shallow recall from real understanding

Return ONLY a JSON array with this exact format:
[
    {
        "question": "Question text here",
        "options": ["A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"],
        "correct": "A",
        "concept": "concept_being_tested",
        "difficulty": 3
    }
]`)
	return b.String()
}

func lessonPrompt(topic, context string, competency float64, chunkCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert AI tutor. Use the following course material as context to create a lesson about %s for someone with competency level %.1f/10.\n\n", topic, competency)
	if context != "" {
		fmt.Fprintf(&b, "Course context (from real lecture notes):\n%s\n\n", context)
	}
	fmt.Fprintf(&b, `Structure the lesson with:
1. Brief overview
2. %d main learning chunks (each should be digestible in 2-3 minutes)
3. Key takeaways

Return ONLY a JSON object with this format:
{
    "topic": %q,
    "overview": "Brief overview...",
    "chunks": [
        {
            "title": "Chunk 1 Title",
            "content": "Detailed explanation...",
            "key_point": "Main takeaway"
        }
    ],
    "key_takeaways": ["Takeaway 1", "Takeaway 2"]
}`, chunkCount, topic)
	return b.String()
}

func curriculumPrompt(topic string, gaps []string, weakest []string) string {
	var history string
	if len(weakest) > 0 {
		history = fmt.Sprintf("\n\nMeasured weakest concepts across the learner's past assessments: %s.\nWeight the early lessons toward these.", strings.Join(weakest, ", "))
	}

	return fmt.Sprintf(`Create a personalized curriculum for learning %q based on these knowledge gaps: %s%s

Create a structured learning plan with:
1. 3-5 lessons that address the gaps systematically
2. Each lesson should build on the previous one
3. Include estimated time and difficulty
4. Provide clear learning objectives for each lesson

Return ONLY a JSON object with this format:
{
    "curriculum_id": "unique_id",
    "topic": %q,
    "total_lessons": 4,
    "estimated_duration": "2-3 hours",
    "lessons": [
        {
            "title": "Lesson Title",
            "description": "What this lesson covers",
            "learning_objectives": ["Objective 1", "Objective 2"],
            "estimated_time": "30 minutes",
            "difficulty": "beginner",
            "prerequisites": [],
            "targets_gaps": ["gap1", "gap2"]
        }
    ]
}`, topic, strings.Join(gaps, ", "), history, topic)
}

func explanationPrompt(topic, question, context string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert AI tutor helping a student learn %s.\n\n", topic)
	if context != "" {
		fmt.Fprintf(&b, "Course context (from real lecture notes):\n%s\n\n", context)
	}
	fmt.Fprintf(&b, `Answer the student's question clearly and concretely, using the course context where it helps. Keep the answer focused on the question.

Question: %s`, question)
	return b.String()
}

func lessonQuizPrompt(lesson Lesson) string {
	var content strings.Builder
	content.WriteString(lesson.Overview)
	for _, chunk := range lesson.Chunks {
		content.WriteString("\n")
		content.WriteString(chunk.Content)
	}
	excerpt := content.String()
	if len(excerpt) > 1500 {
		excerpt = excerpt[:1500]
	}

	return fmt.Sprintf(`Based on this lesson content, create 3-5 quiz questions to test understanding:

Lesson: %s

Questions should:
1. Test key concepts from the lesson
2. Be directly related to what was taught
3. Have clear correct answers
4. Include some application-based questions

Return ONLY a JSON array with this exact format:
[
    {
        "question": "Question text here",
        "options": ["A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"],
        "correct": "A",
        "concept": "concept_being_tested",
        "difficulty": 2
    }
]`, excerpt)
}
