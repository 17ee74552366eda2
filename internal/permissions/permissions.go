// Package permissions holds the static role to permission table.
package permissions

const (
	RoleAdmin           = "admin"
	RoleManagement      = "management"
	RoleTechnicalLead   = "technical_lead"
	RoleProjectManager  = "project_manager"
	RolePurchaseManager = "purchase_manager"
	RoleFieldWorker     = "field_worker"
	RoleClient          = "client"
)

const (
	ClientsRead  = "clients:read"
	ClientsWrite = "clients:write"

	SuppliersRead  = "suppliers:read"
	SuppliersWrite = "suppliers:write"

	ProjectsRead  = "projects:read"
	ProjectsWrite = "projects:write"

	MaterialsRead  = "materials:read"
	MaterialsWrite = "materials:write"

	SiteReportsRead  = "site_reports:read"
	SiteReportsWrite = "site_reports:write"

	ReportsRead = "reports:read"

	ApprovalsRead   = "approvals:read"
	ApprovalsCreate = "approvals:create"
	ApprovalsAct    = "approvals:act"

	FilesRead  = "files:read"
	FilesWrite = "files:write"

	UsersCreate = "users:create"

	AdminCleanup  = "admin:cleanup"
	AdminDBHealth = "admin:db_health"
)

// All grants every permission.
const All = "*"

var table = map[string][]string{
	RoleAdmin: {All},
	RoleManagement: {
		ClientsRead, ClientsWrite, SuppliersRead, SuppliersWrite, ProjectsRead, ProjectsWrite,
		MaterialsRead, MaterialsWrite, SiteReportsRead, SiteReportsWrite, ReportsRead,
		ApprovalsRead, ApprovalsCreate, ApprovalsAct, FilesRead, FilesWrite, UsersCreate,
	},
	RoleTechnicalLead: {
		ClientsRead, SuppliersRead, ProjectsRead, MaterialsRead, MaterialsWrite,
		SiteReportsRead, SiteReportsWrite, ReportsRead, ApprovalsRead, ApprovalsCreate,
		ApprovalsAct, FilesRead, FilesWrite,
	},
	RoleProjectManager: {
		ClientsRead, ClientsWrite, SuppliersRead, ProjectsRead, ProjectsWrite, MaterialsRead,
		MaterialsWrite, SiteReportsRead, SiteReportsWrite, ReportsRead, ApprovalsRead,
		ApprovalsCreate, ApprovalsAct, FilesRead, FilesWrite,
	},
	RolePurchaseManager: {
		SuppliersRead, SuppliersWrite, ProjectsRead, MaterialsRead, MaterialsWrite,
		ApprovalsRead, ApprovalsAct, FilesRead, FilesWrite,
	},
	RoleFieldWorker: {
		ProjectsRead, MaterialsRead, SiteReportsRead, SiteReportsWrite, FilesRead, FilesWrite,
	},
	RoleClient: {
		ProjectsRead, SiteReportsRead, ApprovalsRead, ApprovalsAct,
	},
}

// Can reports whether role holds permission. Unknown roles hold nothing.
func Can(role, permission string) bool {
	for _, p := range table[role] {
		if p == All || p == permission {
			return true
		}
	}
	return false
}

// ValidRole reports whether role appears in the table.
func ValidRole(role string) bool {
	_, ok := table[role]
	return ok
}

// Of returns a copy of the permissions granted to role.
func Of(role string) []string {
	return append([]string(nil), table[role]...)
}
