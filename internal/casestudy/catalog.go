// Package casestudy holds the historical accidents the copilot can replay as simulations.
package casestudy

import (
	"sort"
	"strings"
)

// CaseStudy describes one historical accident and how an assistant could have helped.
type CaseStudy struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Date         string `json:"date"`
	Location     string `json:"location"`
	Cause        string `json:"cause,omitempty"`
	PrimaryCause string `json:"primary_cause,omitempty"`
	AISolution   string `json:"ai_solution,omitempty"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	// Featured entries are listed on the case study index; the rest are simulation ids.
	Featured bool `json:"featured"`
}

var catalog = map[string]CaseStudy{
	"KAL801": {
		ID:           "KAL801",
		Title:        "Korean Air Flight 801",
		Date:         "August 6, 1997",
		Location:     "Guam",
		Cause:        "Pilot descended below glide slope despite warnings",
		PrimaryCause: "Controlled flight into terrain due to pilot error and navigational aid failure",
		AISolution:   "Detect descent below safe altitude, issue immediate terrain pull-up alert, prompt for missed approach when glideslope signal weak/absent, enforce crew cross-checks",
		Description:  "Pilot descended below glide slope despite warnings",
		Status:       "Critical - Terrain Alert",
		Featured:     true,
	},
	"TURKISH1951": {
		ID:           "TURKISH1951",
		Title:        "Turkish Airlines Flight 1951",
		Date:         "February 25, 2009",
		Location:     "Amsterdam",
		Cause:        "Radio altimeter failure & autopilot mismanagement",
		PrimaryCause: "Faulty radio altimeter triggered autothrottle to cut engine power to idle, resulting in aerodynamic stall",
		AISolution:   "Cross-check multiple sensor inputs, detect altimeter anomalies, monitor airspeed and flight path, alert to impending stall, take corrective action if pilots fail to respond",
		Description:  "Radio altimeter failure & autopilot mismanagement",
		Status:       "Critical - System Failure",
		Featured:     true,
	},
	"ASIANA214": {
		ID:           "ASIANA214",
		Title:        "Asiana Airlines Flight 214",
		Date:         "July 6, 2013",
		Location:     "San Francisco",
		Cause:        "Low-speed approach with inadequate manual correction",
		PrimaryCause: "Low-speed approach due to autothrottle disengagement and inadequate pilot monitoring during visual approach",
		AISolution:   "Monitor approach speed continuously, alert pilots to low-speed conditions, provide immediate thrust adjustment guidance, enforce visual approach monitoring procedures",
		Description:  "Low-speed approach with inadequate manual correction",
		Status:       "Critical - Low Speed",
		Featured:     true,
	},
	"CRASH_AF447": {
		ID:           "CRASH_AF447",
		Title:        "Air France Flight 447",
		Date:         "June 1, 2009",
		Location:     "Atlantic Ocean",
		Cause:        "Inconsistent speed readings → Stall → Crew disorientation",
		PrimaryCause: "Aerodynamic stall due to pilot error after ice crystals blocked the pitot tubes, leading to unreliable airspeed and improper control inputs",
		AISolution:   "Detect pitot tube icing and unreliable airspeed indications, provide alternative airspeed calculations using other sensors, maintain proper pitch and thrust during unreliable airspeed conditions, alert pilots to impending stall conditions at high altitude",
		Description:  "Unreliable airspeed after pitot icing led to a high altitude stall",
		Status:       "Critical - Stall",
		Featured:     true,
	},
	"CRASH_COLGAN3407": {
		ID:           "CRASH_COLGAN3407",
		Title:        "Colgan Air Flight 3407",
		Date:         "February 12, 2009",
		Location:     "Buffalo, NY",
		Cause:        "Stall due to pilot error & improper stick control",
		PrimaryCause: "Pilot's inappropriate response to an impending stall (pulled back on controls instead of proper recovery), resulting in loss of control",
		AISolution:   "Monitor airspeed during approach phases, alert pilots to impending stall conditions, provide immediate stall recovery guidance, enforce sterile cockpit discipline reminders, cross-check multiple sensor inputs for airspeed validation",
		Description:  "Improper stall recovery on approach",
		Status:       "Critical - Stall",
		Featured:     true,
	},
	"CRASH_KAL801": {
		ID:          "CRASH_KAL801",
		Title:       "Korean Air Flight 801 (Historical Crash)",
		Date:        "August 6, 1997",
		Location:    "Guam International Airport",
		Description: "Controlled flight into terrain - 229 fatalities, 25 survivors",
		Status:      "Critical - Historical Reference",
	},
	"CRASH_THY1951": {
		ID:          "CRASH_THY1951",
		Title:       "Turkish Airlines Flight 1951",
		Date:        "February 25, 2009",
		Location:    "Amsterdam",
		Description: "Radio altimeter failure and autothrottle malfunction",
		Status:      "Critical - System Failure",
	},
	"CRASH_AAR214": {
		ID:          "CRASH_AAR214",
		Title:       "Asiana Airlines Flight 214",
		Date:        "July 6, 2013",
		Location:    "San Francisco",
		Description: "Low-speed approach due to autothrottle disengagement",
		Status:      "Critical - Low Speed",
	},
}

// Unknown is returned for ids missing from the catalog.
func Unknown(id string) CaseStudy {
	return CaseStudy{
		ID:          id,
		Title:       "Unknown Flight",
		Date:        "Unknown",
		Location:    "Unknown",
		Description: "Flight data not available",
		Status:      "Unknown",
	}
}

// Lookup reports whether id is a known case study. Matching is case-insensitive.
func Lookup(id string) (CaseStudy, bool) {
	cs, ok := catalog[strings.ToUpper(strings.TrimSpace(id))]
	return cs, ok
}

// Resolve returns the case study for id, or the Unknown placeholder.
func Resolve(id string) CaseStudy {
	if cs, ok := Lookup(id); ok {
		return cs
	}
	return Unknown(id)
}

// List returns the featured case studies in index page order.
func List() []CaseStudy {
	order := []string{"KAL801", "TURKISH1951", "ASIANA214", "CRASH_AF447", "CRASH_COLGAN3407"}
	out := make([]CaseStudy, 0, len(order))
	for _, id := range order {
		out = append(out, catalog[id])
	}
	return out
}

// IDs returns every id the simulation chat accepts, sorted.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
