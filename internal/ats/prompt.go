package ats

import "strings"

const systemPrompt = `You are an applicant tracking system reviewer. You compare a resume with a job description and answer with a single JSON object and nothing else.`

const promptTemplate = `Compare the RESUME with the JOB DESCRIPTION.

Return JSON with exactly these fields:
{
  "score": <0-100 overall ATS compatibility>,
  "match_percentage": <0-100 keyword match>,
  "missing_keywords": {"skills": [], "experience": [], "summary": []},
  "found_keywords": [],
  "formatting_issues": [],
  "summary": "<two sentences>",
  "role_fit": "<strong|moderate|weak> plus one sentence",
  "suggestions": [
    {"section_type": "summary|skills|experience|...", "data": {<fields to overwrite in that section>}}
  ]
}

Only suggest fields you would change. For skills use {"items": [...]}; for summary use {"text": "..."}.

RESUME:
{{resume}}

JOB DESCRIPTION:
{{job}}
`

func buildPrompt(resume, job string) string {
	return strings.NewReplacer("{{resume}}", resume, "{{job}}", job).Replace(promptTemplate)
}
