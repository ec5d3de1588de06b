package tutor

import "fmt"

// fallbackLesson is served when generation and the lesson cache both come up
// empty. It keeps the learner moving instead of surfacing a model error.
func fallbackLesson(topic string) Lesson {
	return Lesson{
		Topic:    topic,
		Overview: fmt.Sprintf("Introduction to %s - exploring the fundamentals and key concepts you need to understand.", topic),
		Chunks: []LessonChunk{
			{
				Title:    "Understanding the Basics",
				Content:  fmt.Sprintf("Let's start by understanding what %s means and why it's important in the field of artificial intelligence. We'll break down the core concepts and build your foundation knowledge step by step.", topic),
				KeyPoint: fmt.Sprintf("Understanding %s is fundamental to AI knowledge and practical applications.", topic),
			},
			{
				Title:    "Key Concepts and Components",
				Content:  fmt.Sprintf("There are several important concepts within %s that form the foundation of this area. Each concept builds on the previous ones, creating a comprehensive understanding of how these systems work.", topic),
				KeyPoint: "Each concept builds on the previous ones to create comprehensive understanding.",
			},
			{
				Title:    "Real-World Applications",
				Content:  fmt.Sprintf("Now let's explore how %s is used in real-world scenarios and applications. Understanding practical applications helps bridge the gap between theory and practice.", topic),
				KeyPoint: "Theory becomes powerful when applied to solve real-world problems.",
			},
			{
				Title:    "Summary and Next Steps",
				Content:  fmt.Sprintf("We've covered the fundamentals of %s. Let's summarize what we've learned and discuss how you can continue building on this knowledge in your AI learning journey.", topic),
				KeyPoint: "Continuous learning and practice are key to mastering AI concepts.",
			},
		},
		KeyTakeaways: []string{
			fmt.Sprintf("Learned the fundamentals of %s and its importance in AI", topic),
			"Understood key concepts and their relationships to each other",
			"Explored real-world applications and practical use cases",
			"Ready to continue learning more advanced topics and applications",
		},
	}
}
