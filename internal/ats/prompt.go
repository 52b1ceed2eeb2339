package ats

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are an advanced ATS (Applicant Tracking System) evaluator. Respond with a single JSON object and nothing else."

const reportSchema = `{
  "ats_score": number,
  "overall_fit": "strong" | "moderate" | "weak",
  "matched_skills": [string],
  "missing_skills": [string],
  "keyword_gaps": [string],
  "experience_match": string,
  "improvements": [{"title": string, "description": string, "priority": "high" | "medium" | "low"}],
  "summary": string,
  "recommendations": [string]
}`

func buildPrompt(resume, jd string, similarity float64, kw keywordOverlap) string {
	var b strings.Builder
	b.WriteString("Evaluate the candidate resume against the job description.\n\n")
	b.WriteString("Tasks:\n")
	b.WriteString("1. Analyze how well the resume matches the job description.\n")
	b.WriteString("2. Identify missing or weak skills and strong matching skills.\n")
	b.WriteString("3. Provide 3-7 actionable improvements with short titles and priorities reflecting ATS impact.\n")
	b.WriteString("4. Estimate an ATS score from 0 to 100.\n\n")
	fmt.Fprintf(&b, "Semantic similarity (0 to 1): %.2f\n", similarity)
	if len(kw.Matching) > 0 {
		fmt.Fprintf(&b, "Shared keywords: %s\n", strings.Join(kw.Matching, ", "))
	}
	if len(kw.Missing) > 0 {
		fmt.Fprintf(&b, "Job keywords not found in resume: %s\n", strings.Join(kw.Missing, ", "))
	}
	b.WriteString("\nOutput format (strict JSON, no markdown):\n")
	b.WriteString(reportSchema)
	b.WriteString("\n\n### Resume:\n")
	b.WriteString(resume)
	b.WriteString("\n\n### Job Description:\n")
	b.WriteString(jd)
	return b.String()
}
