package questionbank

// Default returns the built-in software engineering question bank.
func Default() *Bank {
	return &Bank{
		Categories: map[Category][]string{
			Behavioral: {
				"What are your biggest strengths and how do they apply to this role?",
				"What is your biggest weakness and what are you doing to improve it?",
				"How do you handle receiving critical feedback?",
				"What makes you a good team member?",
				"Where do you see yourself in five years?",
			},
			Situational: {
				"Describe a time you worked on a team project and faced a conflict or disagreement. How did you handle it?",
				"Tell me about a time you failed. What did you learn from it?",
				"How would you handle a tight deadline or a high-pressure situation?",
				"Imagine you disagree with a technical decision made by your lead. What would you do?",
			},
			TechnicalConcepts: {
				"Explain a complex technical concept to me as if I were a beginner (e.g., APIs, async/await, databases).",
				"What's the difference between a library and a framework?",
				"In your own words, what is object-oriented programming (OOP)?",
				"What is the purpose of a RESTful API?",
				"Explain the difference between SQL and NoSQL databases.",
			},
			ProjectExperience: {
				"Describe the most complex project you've worked on from your portfolio.",
				"Walk me through the architecture of one of your past projects.",
				"Describe a time you had to learn a new technology or tool quickly for a project.",
				"What is your experience with version control systems like Git?",
				"What are some of your favorite personal coding projects?",
			},
			ProblemSolving: {
				"How do you approach debugging a difficult problem?",
				"If you could start any software project today, what would it be and why?",
				"How do you stay up-to-date with the latest trends in technology?",
				"What is your favorite programming language and why?",
				"Why do you want to be a software engineer?",
			},
		},
	}
}
