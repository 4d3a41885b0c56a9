package flights

// DemoFlights is served when live data cannot be fetched.
func DemoFlights() []Flight {
	return []Flight{
		{ID: "demo1", Callsign: "UAL123", Country: "United States", Latitude: 40.7128, Longitude: -74.0060, Altitude: 35000, Velocity: 450},
		{ID: "demo2", Callsign: "DLH456", Country: "Germany", Latitude: 52.5200, Longitude: 13.4050, Altitude: 32000, Velocity: 480},
		{ID: "demo3", Callsign: "BAW789", Country: "United Kingdom", Latitude: 51.5074, Longitude: -0.1278, Altitude: 28000, Velocity: 420},
		{ID: "demo4", Callsign: "AFR234", Country: "France", Latitude: 48.8566, Longitude: 2.3522, Altitude: 30000, Velocity: 460},
		{ID: "demo5", Callsign: "KLM567", Country: "Netherlands", Latitude: 52.3676, Longitude: 4.9041, Altitude: 25000, Velocity: 440},
	}
}
