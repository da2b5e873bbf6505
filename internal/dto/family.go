package dto

// SwitchFamilyRequest selects the principal's active family.
type SwitchFamilyRequest struct {
	FamilyUnitID string `json:"family_unit_id" validate:"required,uuid"`
}

// EmergencyRequest raises a family-wide alert.
type EmergencyRequest struct {
	Message   string   `json:"message" validate:"max=500"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// EmergencyResult summarises who an alert was queued for.
type EmergencyResult struct {
	Queued     int `json:"queued"`
	Suppressed int `json:"suppressed"`
}

// SuppressionRequest toggles the principal's do-not-disturb mode.
type SuppressionRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SuppressionResult echoes the stored mode.
type SuppressionResult struct {
	Active bool `json:"active"`
}
