package llm

import "fmt"

// SummarySystemPrompt builds the system prompt for transcript summarization.
// languageName is the human-readable name of the language the summary should
// be written in.
func SummarySystemPrompt(languageName string) string {
	return fmt.Sprintf(`You are a careful editor who summarizes video transcripts.

Write a concise summary of the transcript the user provides:
1. Lead with one or two sentences stating what the video is about.
2. Follow with the main points as short bullet lines.
3. Keep the summary faithful to the transcript; do not invent content.
4. Write the entire summary in %s.`, languageName)
}

// FormatSystemPrompt builds the system prompt for transcript formatting:
// punctuation and paragraph breaks without changing the words.
func FormatSystemPrompt(languageName string) string {
	return fmt.Sprintf(`You restore punctuation and paragraph structure to raw speech transcripts.

Rules:
1. Add appropriate punctuation (periods, commas, question marks).
2. Break the text into paragraphs at topic or pause boundaries.
3. Each paragraph should express one complete thought.
4. Do not rewrite, translate, add, or remove any words.
5. The transcript is in %s; respond in the same language.

Respond with the formatted transcript only.`, languageName)
}

// KeywordsSystemPrompt is the system prompt for keyword extraction. The model
// must answer with a JSON object holding a "keywords" array.
const KeywordsSystemPrompt = `You extract topical keywords from video transcripts.

Given a video title and transcript, respond with JSON only, in the shape
{"keywords": ["keyword1", "keyword2"]}.

Rules:
1. Return between 3 and 10 keywords.
2. Keywords are short noun phrases in the transcript's language.
3. Prefer specific topics over generic words like "video" or "discussion".`

// KeywordsUserPrompt combines the title and transcript into the user message
// for keyword extraction.
func KeywordsUserPrompt(title, transcript string) string {
	if title == "" {
		return "Transcript:\n" + transcript
	}
	return fmt.Sprintf("Title: %s\n\nTranscript:\n%s", title, transcript)
}
