package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const rankingPrompt = `Given the following user query: %q, rank the most relevant videos from this list:
%s
Return a JSON array of video IDs in order of relevance.`

const draftPrompt = `Generate creative video metadata for a new video about: %s.
Return JSON with title, description, mood (Energetic, Calm, Focus, Dark, or Funny), and duration (mm:ss).`

const summaryPrompt = `Summarize this video content based on its title and description.
Provide 3 key takeaways and a "vibe check".
Title: %s
Description: %s`

const chatPersona = `You are Nova, an AI assistant for the NovaTube platform.
You are helping the user discuss a video with the following context: %s.
Be insightful, slightly futuristic, and helpful.`

// Candidate is the view of a catalog item sent for ranking.
type Candidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func buildRankingPrompt(query string, candidates []Candidate) string {
	list, _ := json.Marshal(candidates)
	return fmt.Sprintf(rankingPrompt, query, list)
}

func buildDraftPrompt(prompt string) string {
	return fmt.Sprintf(draftPrompt, prompt)
}

func buildSummaryPrompt(title, description string) string {
	return fmt.Sprintf(summaryPrompt, title, description)
}

func buildChatSystem(title, description string) string {
	return fmt.Sprintf(chatPersona, title+": "+description)
}

// stripFences removes markdown code fences from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
