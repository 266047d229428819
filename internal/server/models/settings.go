package models

// Settings is the application-wide, read-mostly configuration row consulted
// by the access policy engine on every request.
type Settings struct {
	MaintenanceMode     bool
	RegistrationAllowed bool
}
