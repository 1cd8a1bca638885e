package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RolePlatformAdmin = "platform_admin"
	RoleBusinessAdmin = "business_admin"
	RoleManager       = "manager"
	RoleInhouseSales  = "inhouse_sales"
	RoleTeleCalling   = "tele_calling"
	RoleMarketing     = "marketing"
	RoleStaff         = "staff"
)

// IsPlatformAdmin reports the cross-tenant operator role.
func IsPlatformAdmin(role string) bool { return role == RolePlatformAdmin }

// IsTenantAdmin reports roles that administer a single tenant.
func IsTenantAdmin(role string) bool {
	return role == RoleBusinessAdmin || role == RoleManager
}

func IsKnownRole(role string) bool {
	switch role {
	case RolePlatformAdmin, RoleBusinessAdmin, RoleManager, RoleInhouseSales, RoleTeleCalling, RoleMarketing, RoleStaff:
		return true
	default:
		return false
	}
}
