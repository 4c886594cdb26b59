package llm

// Prompt templates for the Ollama-backed collaborators. The response
// parser is tolerant of code fences and chatter around the JSON, so the
// prompts ask for bare JSON but the pipeline survives models that don't
// comply exactly.

const extractMentionsPrompt = `You are extracting speaker information from an event page.

Find every person presented as a speaker, panelist, moderator, or keynote.
For each person return their name exactly as written, their stated title,
their stated affiliation, and any short biography text, using empty strings
for anything the page does not state. Do not guess or infer missing fields.

Respond with ONLY a JSON array, no other text:
[{"name": "...", "title": "...", "affiliation": "...", "bio": "..."}]

Event page text:
%s`

const parseQueryPrompt = `You are parsing a speaker search request into structured form.

Identify:
- how many speakers are requested (0 if unspecified)
- hard requirements: binding constraints the user states as must-haves
- soft preferences: nice-to-have constraints, each with a weight in (0,1]
  reflecting how strongly the user expressed it

Allowed constraint types: "demographic", "location", "language".

Respond with ONLY a JSON object, no other text:
{"requested_count": 0,
 "hard_requirements": [{"type": "...", "value": "..."}],
 "soft_preferences": [{"type": "...", "value": "...", "weight": 0.5}]}

Search request:
%s`
