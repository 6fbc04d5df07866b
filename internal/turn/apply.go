package turn

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"openhistoria/internal/world"
)

const maxSnapshotDescription = 120

// apply mutates the world with updates in order and records the turn.
func (c *Coordinator) apply(command, message string, updates []world.Update) Result {
	res := Result{Message: message, Applied: []AppliedUpdate{}, Ignored: []world.Update{}}
	names := c.nationNames()
	var headline string

	for _, u := range updates {
		entry, significant, ok := c.applyOne(u, names)
		if !ok {
			res.Ignored = append(res.Ignored, u)
			continue
		}
		res.Applied = append(res.Applied, AppliedUpdate{Update: u, Log: entry})
		if significant {
			if !res.Significant {
				headline = entry.Text
			}
			res.Significant = true
		}
	}

	if res.Significant {
		res.SnapshotID = c.timeline.Capture(truncate(headline, maxSnapshotDescription), command)
	}
	c.world.AppendLog(world.LogInfo, message)
	c.world.AppendNarrative(message)
	res.Turn = c.world.Turn()
	return res
}

func (c *Coordinator) applyOne(u world.Update, names map[string]string) (world.LogEntry, bool, bool) {
	switch u.Kind {
	case world.UpdateOwner:
		province, ok := c.world.FindProvince(u.Owner.ProvinceName)
		if !ok {
			c.logger.Printf("no province matches %q", u.Owner.ProvinceName)
			return world.LogEntry{}, false, false
		}
		c.world.SetOwner(province.ID, u.Owner.NewOwnerID)
		logType := world.LogWar
		if u.Owner.NewOwnerID == world.PlayerID {
			logType = world.LogCapture
		}
		text := fmt.Sprintf("%s takes control of %s.", nameOf(names, u.Owner.NewOwnerID), province.Name)
		return c.world.AppendLog(logType, text), true, true

	case world.UpdateTime:
		if c.adjudicator.Policy() != TimeOracle || u.Time.Amount <= 0 {
			return world.LogEntry{}, false, false
		}
		turn := c.world.AdvanceTurn(u.Time.Amount)
		text := fmt.Sprintf("%d %s pass. The year is now %d.", u.Time.Amount, plural(u.Time.Amount, "year"), turn)
		return c.world.AppendLog(world.LogEventSummary, text), false, true

	case world.UpdateEvent:
		event := c.world.AppendEvent(u.Event.Year, u.Event.Description, u.Event.EventType)
		text := fmt.Sprintf("%d: %s", event.Year, event.Description)
		return c.world.AppendLog(eventLogType(event.Type), text), event.Type != world.EventFlavor, true

	case world.UpdateRelation:
		rt, known := world.ParseRelationType(u.Relation.RelationType)
		if !known {
			c.logger.Printf("storing unrecognized relation type %q", rt)
		}
		c.world.SetRelation(world.Relation{NationA: u.Relation.NationA, NationB: u.Relation.NationB, Type: rt})
		text := fmt.Sprintf("%s and %s are now %s.", nameOf(names, u.Relation.NationA), nameOf(names, u.Relation.NationB), relationPhrase(rt))
		if reason := strings.TrimSpace(u.Relation.Reason); reason != "" {
			text = fmt.Sprintf("%s (%s)", strings.TrimSuffix(text, "."), reason)
		}
		return c.world.AppendLog(relationLogType(rt), text), true, true
	}
	return world.LogEntry{}, false, false
}

func eventLogType(t world.EventType) world.LogType {
	switch t {
	case world.EventWar:
		return world.LogWar
	case world.EventDiplomacy:
		return world.LogDiplomacy
	case world.EventEconomy:
		return world.LogEconomy
	case world.EventCrisis:
		return world.LogCrisis
	default:
		return world.LogInfo
	}
}

func relationLogType(t world.RelationType) world.LogType {
	switch t {
	case world.RelationWar:
		return world.LogWar
	case world.RelationAllied:
		return world.LogDiplomacy
	default:
		return world.LogInfo
	}
}

func relationPhrase(t world.RelationType) string {
	switch t {
	case world.RelationWar:
		return "at war"
	case world.RelationVassal:
		return "bound as vassal and overlord"
	default:
		return string(t)
	}
}

func (c *Coordinator) nationNames() map[string]string {
	nations := c.world.Nations()
	names := make(map[string]string, len(nations))
	for _, n := range nations {
		names[n.ID] = n.Name
	}
	return names
}

func nameOf(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
