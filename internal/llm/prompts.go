package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

const proposePrompt = `You are a user modeling system. Below are recent observations of one user's computer activity.

Observations:
%s

Generate propositions: specific statements about this user's habits, preferences, workflows, or current goals. For each proposition provide:
- text: a clear statement about the user
- reasoning: which observed behavior supports the statement
- confidence: a number from 1 to 10, where 1 is a weak guess and 10 is near certain

Ground every proposition in the observations. Do not speculate beyond them. Prefer a few well-supported propositions over many weak ones.

Respond ONLY with a JSON array. No markdown, no explanation. Example:
[{"text":"User prefers dark editor themes","reasoning":"Switched the editor to a dark theme in two separate sessions","confidence":7}]

If the observations support no propositions, respond with an empty array: []`

const relatePrompt = `Compare a new candidate statement about a user against an existing statement.

Candidate: %s
Existing: %s

Classify the relationship:
- same: both describe the same underlying fact about the user
- related: they overlap or describe connected behavior, but are not the same fact
- unrelated: they describe independent facts

Answer only "same", "related" or "unrelated". No explanation.`

const mergePrompt = `An existing statement about a user needs revision in light of a new candidate statement derived from fresh observations.

Existing statement: %s
Existing reasoning: %s

Candidate statement: %s
Candidate reasoning: %s

Produce one revised statement that reconciles both. Keep what the existing statement got right, incorporate what the new evidence adds or corrects, and set confidence from 1 to 10 to reflect the combined evidence. If the new evidence contradicts the existing statement, prefer the newer behavior and lower the confidence.

Respond ONLY with JSON, no markdown fences:
{"text":"revised statement","reasoning":"combined reasoning","confidence":7}`

const synthesizePrompt = `Distill the following statements about a user into stable profile notes.

Statements:
%s

A profile note is a durable summary of who this user is and how they work, not a restatement of any single statement. For each note provide:
- category: one of "workflow", "preference", "habit"
- content: one or two sentences
- source_count: how many of the statements support it

Only produce notes supported by multiple statements.

Respond ONLY with a JSON array, no markdown fences:
[{"category":"workflow","content":"Starts the day reviewing pull requests before writing new code","source_count":4}]

If the statements are too sparse to support any note, respond with an empty array: []`

func renderObservations(obs []domain.Observation) string {
	var sb strings.Builder
	for i, o := range obs {
		sb.WriteString(fmt.Sprintf("%d. [%s][%s] %s\n", i+1, o.CapturedAt.Format(time.RFC3339), o.ContentType, o.Content))
	}
	return sb.String()
}

func renderPropositions(props []domain.Proposition) string {
	var sb strings.Builder
	for i, p := range props {
		sb.WriteString(fmt.Sprintf("%d. (confidence %.1f) %s\n   Reasoning: %s\n", i+1, p.Confidence, p.Text, p.Reasoning))
	}
	return sb.String()
}
