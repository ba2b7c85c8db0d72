package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanNg1403/tieplm/internal/domain"
	llm "github.com/RyanNg1403/tieplm/internal/openai"
)

const (
	historyMessageRunes = 200

	// NoRelevantContentAnswer is the complete answer given when retrieval
	// finds nothing to ground on.
	NoRelevantContentAnswer = "No relevant content was found in the course videos for this request."
)

const citationRules = `
Cite the numbered sources inline with markers such as [1] or [2, 3].
Only cite numbers that appear in the source list. Do not invent sources.
If the sources do not contain the answer, say so.`

var systemPrompts = map[domain.TaskType]string{
	domain.TaskTypeQA: `You are a helpful assistant for a video lecture course.
Answer questions using only the provided excerpts from the lecture transcripts.` + citationRules,

	domain.TaskTypeTextSummary: `You are a helpful assistant that writes concise summaries of video course content.
Synthesize the provided excerpts into a clear, structured summary of the requested topic.` + citationRules,

	domain.TaskTypeVideoSummary: `You are a helpful assistant that summarizes one lecture video.
The excerpts are the video's transcript in time order. Follow the structure of the lecture.` + citationRules,

	domain.TaskTypeQuiz: `You are a teaching assistant who writes quiz questions for a video course.
Write questions that test understanding, not recall. Multiple-choice questions have exactly four
options A to D with one correct answer; open questions expect a one or two sentence answer.
Every question names the source it is based on.` + citationRules,
}

var userPromptTemplates = map[domain.TaskType]string{
	domain.TaskTypeQA:           "Based on the following sources from the course videos, answer the question.\n\nSources:\n%s\n\nQuestion: %s\n\nAnswer:",
	domain.TaskTypeTextSummary:  "Based on the following sources from the course videos, write a concise summary about: %[2]s\n\nSources:\n%[1]s\n\nSummary:",
	domain.TaskTypeVideoSummary: "Summarize the following lecture video.\n\nTranscript excerpts:\n%s\n\nFocus: %s\n\nSummary:",
	domain.TaskTypeQuiz:         "Based on the following sources from the course videos, write quiz questions.\n\nSources:\n%s\n\nRequest: %s\n\nQuiz:",
}

// systemPromptFor returns the system prompt of a task, defaulting to Q&A.
func systemPromptFor(task domain.TaskType) string {
	if p, ok := systemPrompts[task]; ok {
		return p
	}
	return systemPrompts[domain.TaskTypeQA]
}

// buildUserPrompt embeds the numbered sources and the request text.
func buildUserPrompt(task domain.TaskType, query string, sources []domain.Candidate) string {
	tmpl, ok := userPromptTemplates[task]
	if !ok {
		tmpl = userPromptTemplates[domain.TaskTypeQA]
	}
	return fmt.Sprintf(tmpl, formatSources(sources), query)
}

// formatSources numbers candidates in final-rank order:
//
//	[i] Video: <title> (mm:ss-mm:ss)
//	<text>
func formatSources(candidates []domain.Candidate) string {
	blocks := make([]string, len(candidates))
	for i, c := range candidates {
		blocks[i] = fmt.Sprintf("[%d] Video: %s (%s-%s)\n%s",
			i+1, lectureTitle(c.Video.Title), formatClock(c.Chunk.Start), formatClock(c.Chunk.End), c.Chunk.RawText)
	}
	return strings.Join(blocks, "\n\n")
}

// formatClock renders seconds as MM:SS, or H:MM:SS past the hour.
func formatClock(seconds float64) string {
	total := int(math.Floor(math.Max(seconds, 0)))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// historyTurns replays prior messages as conversation context, each cut to
// a short prefix.
func historyTurns(messages []*domain.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		content := []rune(m.Content)
		if len(content) > historyMessageRunes {
			content = content[:historyMessageRunes]
		}
		turns = append(turns, llm.Turn{Role: string(m.Role), Content: string(content)})
	}
	return turns
}

// sourceReferences numbers candidates 1..M for the sources event.
func sourceReferences(candidates []domain.Candidate) []domain.SourceReference {
	refs := make([]domain.SourceReference, len(candidates))
	for i, c := range candidates {
		refs[i] = domain.SourceReference{
			Index:      i + 1,
			ChunkID:    c.Chunk.ID,
			VideoID:    c.Video.ID,
			Chapter:    c.Video.Chapter,
			VideoTitle: c.Video.Title,
			VideoURL:   c.Video.URL,
			Start:      c.Chunk.Start,
			End:        c.Chunk.End,
			Text:       c.Chunk.RawText,
			Score:      c.Score(),
		}
	}
	return refs
}
