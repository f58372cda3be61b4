package authz

const (
	RoleServiceReader = "service-reader"
	RolePlatformAdmin = "platform-admin"
	RoleAnonymous     = "anonymous"
)

const (
	ActionRead  = "read"
	ActionAdmin = "admin"
)

const DomainGlobal = "global"

const (
	ObjectPlatformBootstrap   = "platform.bootstrap"
	ObjectPlatformCostConfigs = "platform.cost-configs"
	ObjectPlatformRoles       = "platform.roles"
	ObjectPlatformCatalog     = "platform.catalog"
)
