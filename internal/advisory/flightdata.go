package advisory

import "time"

// FlightData is the telemetry snapshot accepted by the advise_pilot endpoint.
type FlightData struct {
	FlightID        string          `json:"flight_id"`
	AircraftType    string          `json:"aircraft_type"`
	PilotID         string          `json:"pilot_id"`
	Timestamp       time.Time       `json:"timestamp"`
	Location        Location        `json:"location"`
	Speed           Speed           `json:"speed"`
	Engine          Engine          `json:"engine"`
	AircraftSystems AircraftSystems `json:"aircraft_systems"`
	Environment     Environment     `json:"environment"`
	PilotActions    PilotActions    `json:"pilot_actions"`
}

type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeFt float64 `json:"altitude_ft"`
}

type Speed struct {
	AirspeedKnots    float64 `json:"airspeed_knots"`
	VerticalSpeedFPM float64 `json:"vertical_speed_fpm"`
}

type Engine struct {
	Engine1RPM float64 `json:"engine_1_rpm"`
	Engine2RPM float64 `json:"engine_2_rpm"`
}

type AircraftSystems struct {
	LandingGearStatus string   `json:"landing_gear_status"`
	FlapSetting       string   `json:"flap_setting"`
	AutopilotEngaged  bool     `json:"autopilot_engaged"`
	Warnings          []string `json:"warnings"`
}

type Environment struct {
	WindSpeedKnots     float64 `json:"wind_speed_knots"`
	WindDirectionDeg   float64 `json:"wind_direction_deg"`
	TemperatureC       float64 `json:"temperature_c"`
	VisibilityMiles    float64 `json:"visibility_miles"`
	Precipitation      string  `json:"precipitation"`
	TerrainProximityFt float64 `json:"terrain_proximity_ft"`
}

type PilotActions struct {
	ThrottlePercent float64 `json:"throttle_percent"`
	PitchDeg        float64 `json:"pitch_deg"`
	RollDeg         float64 `json:"roll_deg"`
	YawDeg          float64 `json:"yaw_deg"`
}

// SampleFlightData is the cruise snapshot sent when no live telemetry is
// attached: a 737 level at FL350 over San Francisco with nominal systems.
func SampleFlightData(now time.Time) FlightData {
	return FlightData{
		FlightID:     "KAL801",
		AircraftType: "Boeing 737",
		PilotID:      "PILOT001",
		Timestamp:    now.UTC(),
		Location:     Location{Latitude: 37.7749, Longitude: -122.4194, AltitudeFt: 35000},
		Speed:        Speed{AirspeedKnots: 450, VerticalSpeedFPM: 0},
		Engine:       Engine{Engine1RPM: 95, Engine2RPM: 95},
		AircraftSystems: AircraftSystems{
			LandingGearStatus: "UP",
			FlapSetting:       "0",
			AutopilotEngaged:  true,
			Warnings:          []string{},
		},
		Environment: Environment{
			WindSpeedKnots:     20,
			WindDirectionDeg:   270,
			TemperatureC:       -50,
			VisibilityMiles:    10,
			Precipitation:      "NONE",
			TerrainProximityFt: 1000,
		},
		PilotActions: PilotActions{ThrottlePercent: 85, PitchDeg: 2},
	}
}
