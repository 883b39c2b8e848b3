package briefing

import (
	"fmt"
	"time"
)

// briefingPromptTemplate fixes the generator's behavioral contract: narrative
// tone, citation discipline against the item index, the no-fabrication rule,
// and the exact JSON schema. The item index is included uncompressed so the
// model can resolve citations even though the evidence itself was compressed.
const briefingPromptTemplate = `You are an elite executive assistant. Generate a daily briefing based on the following COMPRESSED evidence.

CRITICAL INSTRUCTIONS:
1. Use the provided Evidence Pack, which has been compressed.
2. Cite sources using the ID tags (e.g. EMAIL[...], GH[...]) in the 'sources' arrays. Only use ids present in the ITEMS INDEX.
3. Do NOT invent facts.
4. Focus on what requires attention.
5. NARRATIVE MODE: the narrative should be written as a cohesive story, not just a list.
   - Paragraph 1: High-level synthesis of what's happening.
   - Paragraph 2: Specific deadlines, meetings, or blockers.
   - Paragraph 3: Technical progress and what to review.
   - Tone: Professional, direct, "The Morning Briefing" style.

6. RETURN JSON ONLY. MATCH THIS SCHEMA EXACTLY:
{
  "generated_at": "ISO-8601 string",
  "greeting": "string (e.g. 'Good morning')",
  "narrative": "string (A 3-4 paragraph cohesive story using markdown. Use **bold** for emphasis.)",
  "time_context": {
    "local_time": "string",
    "timezone": "string"
  },
  "highlights": [
    {
      "type": "calendar | email | github | messages",
      "title": "string (max 200 chars)",
      "detail": "string (max 500 chars)",
      "why_it_matters": "string (max 500 chars)",
      "urgency": "high | medium | low",
      "sources": [{ "kind": "string", "id": "string", "label": "string" }]
    }
  ],
  "recommendations": [
    {
      "action": "string (max 200 chars)",
      "steps": ["string"],
      "sources": [{ "kind": "string", "id": "string", "label": "string" }]
    }
  ],
  "rollup": {
    "email": { "unread_count": number },
    "calendar": { "today_count": number, "next_event_id": "string (optional)" },
    "github": { "active_repos": ["string"], "open_prs": number (optional) }
  }
}

CONTEXT:
Current Time: %s

ITEMS INDEX (Uncompressed reference):
%s

COMPRESSED EVIDENCE PACK:
%s
`

// buildPrompt assembles the single generation request for the briefing path.
func buildPrompt(indexJSON, compressedEvidence string, now time.Time) string {
	return fmt.Sprintf(briefingPromptTemplate,
		now.Format("1/2/2006, 3:04:05 PM"),
		indexJSON,
		compressedEvidence,
	)
}
