package domain

// Role is the operator role carried in access tokens.
type Role string

const (
	RoleDispatcher Role = "DISPATCHER"
	RoleTechnician Role = "TECHNICIAN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleTracker    Role = "TRACKER"
)
