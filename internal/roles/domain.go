package roles

import "github.com/bugtrack/bugtrack/internal/rbac"

// Role aliases the rbac role document; this package owns its persistence.
type Role = rbac.Role

// Seeded role codes.
const (
	CodeDeveloper       = "DEV"
	CodeQualityAnalyst  = "QA"
	CodeBusinessAnalyst = "BA"
	CodeProductManager  = "PM"
	CodeTechnicalMgr    = "TM"
)
