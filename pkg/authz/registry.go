package authz

const (
	RoleRulesetAdmin = "ruleset-admin"
	RoleAnalyst      = "analyst"
	RoleAnonymous    = "anonymous"
	RoleSuperadmin   = "superadmin"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectOverrideRecords = "ruleset.overrides"
	ObjectCacheAdmin      = "ruleset.cache"
	ObjectAuditRun        = "audit.run"
)
