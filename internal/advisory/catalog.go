package advisory

import (
	"fmt"
	"strings"
)

// Phase is a flight phase the pilot can request procedures for.
type Phase struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var phases = []Phase{
	{ID: "preflight", Label: "Preflight"},
	{ID: "takeoff", Label: "Takeoff"},
	{ID: "climb", Label: "Climb"},
	{ID: "cruise", Label: "Cruise"},
	{ID: "descent", Label: "Descent"},
	{ID: "approach", Label: "Approach"},
	{ID: "landing", Label: "Landing"},
	{ID: "taxi", Label: "Taxi"},
}

// Phases lists the flight phases in the order they are flown.
func Phases() []Phase {
	return append([]Phase(nil), phases...)
}

func LookupPhase(id string) (Phase, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range phases {
		if p.ID == id {
			return p, true
		}
	}
	return Phase{}, false
}

// Question is the copilot_chat prompt for the phase.
func (p Phase) Question() string {
	return fmt.Sprintf("Provide detailed %s procedures, checklist, and safety considerations for commercial aviation. "+
		"Include specific steps, speed requirements, altitude considerations, and any warnings or critical points.", p.Label)
}

// Request is the user-side transcript line for a phase request.
func (p Phase) Request() string {
	return fmt.Sprintf("Requesting %s procedures and checklist", p.Label)
}

// Fallback is shown when the backend cannot answer the phase question.
func (p Phase) Fallback() string {
	return fmt.Sprintf("Flight Phase: %s\n\nProcedures and checklist for %s phase. "+
		"Please refer to your aircraft's operating manual for specific procedures.", p.Label, p.Label)
}

// Action is a one-shot quick action.
type Action struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

const (
	ActionSystemStatus   = "system_status"
	ActionSimilarCrashes = "similar_crashes"
	ActionAdvisePilot    = "advise_pilot"
)

var actions = []Action{
	{ID: ActionSystemStatus, Label: "System Status", Description: "Check aircraft systems and instruments"},
	{ID: ActionSimilarCrashes, Label: "Similar Incidents", Description: "Find similar historical incidents"},
	{ID: ActionAdvisePilot, Label: "Emergency Advice", Description: "Get advice from the current flight data snapshot"},
}

func Actions() []Action {
	return append([]Action(nil), actions...)
}

func LookupAction(id string) (Action, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, a := range actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

func (a Action) Request() string {
	return "Requesting " + a.Label
}

func (a Action) Fallback(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return fmt.Sprintf("Unable to process %s at this time. Please try again or contact support. Error: %s", a.Label, msg)
}

const (
	// CustomFlightID tags free-form questions not bound to a case study.
	CustomFlightID = "CUSTOM_FLIGHT"

	SystemCheckMessage  = "Check all aircraft systems and instruments for any anomalies or warnings"
	SimilarCrashesQuery = "flight safety incidents and accidents"
	SimilarCrashesTopK  = 2

	SimulationFallback = "This aircraft is currently descending below glide slope with terrain alerts. Immediate go-around advised."
	FreeFormFallback   = "I'm here to assist with your flight. Please ask me about procedures, checklists, or any flight-related questions."
	NoResponseText     = "No response received"
)

// SimilarResult is one historical incident returned by similar_crashes.
type SimilarResult struct {
	FlightID   string  `json:"flight_id"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}

// FormatSimilar renders results as the numbered advisory read to the pilot.
func FormatSimilar(results []SimilarResult) string {
	items := make([]string, 0, len(results))
	for i, r := range results {
		items = append(items, fmt.Sprintf("%d. Flight ID: %s\n   Summary: %s\n   Similarity Score: %.1f%%",
			i+1, r.FlightID, r.Summary, r.Similarity*100))
	}
	return "Similar Historical Incidents:\n\n" + strings.Join(items, "\n\n")
}
