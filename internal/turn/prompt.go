package turn

import (
	"fmt"
	"strings"

	"openhistoria/internal/world"
)

const systemPromptBase = `You are the oracle of a historical grand-strategy game. The player leads the nation with id "player" and issues free-form commands. Narrate the plausible consequences of each command in two to four sentences and propose concrete changes to the world.

Reply with a single JSON object and nothing else:
{"message": "<narration>", "updates": [<update>, ...]}

Allowed updates:
- {"type": "owner", "provinceName": "<exact province name>", "newOwnerId": "<nation id>"}
- {"type": "event", "description": "<what happened>", "eventType": "diplomacy|war|discovery|flavor|economy|crisis", "year": <year>}
- {"type": "relation", "nationA": "<nation id>", "nationB": "<nation id>", "relationType": "neutral|friendly|allied|hostile|war|vassal", "reason": "<why>"}
`

const (
	manualTimeRule = `Never emit "time" updates. The player alone controls the calendar.`
	oracleTimeRule = `- {"type": "time", "amount": <whole years>} when the command clearly lets time pass. Use it sparingly.`
)

// SystemPrompt returns the oracle instructions for policy.
func SystemPrompt(policy TimePolicy) string {
	if policy == TimeOracle {
		return systemPromptBase + oracleTimeRule + "\n"
	}
	return systemPromptBase + "\n" + manualTimeRule + "\n"
}

// BuildPrompt folds the bounded turn context into the user prompt.
func BuildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", orNone(req.Config.Scenario))
	fmt.Fprintf(&b, "Difficulty: %s\n", orNone(req.Config.Difficulty))
	fmt.Fprintf(&b, "Current year: %d\n", req.GameState.Turn)

	if len(req.GameState.Players) > 0 {
		b.WriteString("\nNations:\n")
		for _, n := range req.GameState.Players {
			fmt.Fprintf(&b, "- %s (id %s)\n", n.Name, n.ID)
		}
	}

	if story := strings.TrimSpace(req.StorySoFar); story != "" {
		fmt.Fprintf(&b, "\nStory so far:\n%s\n", story)
	}

	if len(req.History) > 0 {
		b.WriteString("\nRecent log:\n")
		for _, entry := range req.History {
			fmt.Fprintf(&b, "- [%s] %s\n", entry.Type, entry.Text)
		}
	}

	if len(req.Events) > 0 {
		b.WriteString("\nRecent events:\n")
		for _, e := range req.Events {
			fmt.Fprintf(&b, "- %d (%s): %s\n", e.Year, e.Type, e.Description)
		}
	}

	if len(req.Relations) > 0 {
		b.WriteString("\nDiplomatic relations:\n")
		for _, r := range req.Relations {
			fmt.Fprintf(&b, "- %s / %s: %s\n", r.NationA, r.NationB, r.Type)
		}
	}

	if summary := strings.TrimSpace(req.ProvinceSummary); summary != "" {
		fmt.Fprintf(&b, "\nProvince ownership:\n%s\n", summary)
	}

	fmt.Fprintf(&b, "\nPlayer command: %s\n", req.Command)
	return b.String()
}

// ProvinceSummary renders owned provinces one per line.
func ProvinceSummary(owned []world.OwnedProvince) string {
	lines := make([]string, 0, len(owned))
	for _, p := range owned {
		lines = append(lines, fmt.Sprintf("%s: %s", p.Name, p.OwnerID))
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "none"
	}
	return s
}
