// Package access implements role-based permission checks for the bot.
//
// Roles:
//   - ADMIN:       full access, can manage users and bot state
//   - DEVELOPER:   read/write access to the engineering tools
//   - STAKEHOLDER: read-only access to GitHub and Jira plus web search
//   - DEFAULT:     basic bot interaction and web search only
//   - NONE:        unauthenticated, no permissions at all
//
// The role to permission mapping is a closed table: a role has exactly
// the permissions listed here, nothing is inherited or computed.
package access

import "log/slog"

// Role is a user's assigned access tier.
type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleDeveloper   Role = "DEVELOPER"
	RoleStakeholder Role = "STAKEHOLDER"
	RoleDefault     Role = "DEFAULT"
	RoleNone        Role = "NONE"
)

// RoleFromString parses a role name, returning RoleNone for anything
// outside the known set.
func RoleFromString(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleDeveloper, RoleStakeholder, RoleDefault, RoleNone:
		return Role(s)
	}
	return RoleNone
}

// Permission is a granular capability key. Format: SCOPE_ACTION_SUBJECT.
type Permission string

const (
	SystemAdminAccess Permission = "SYSTEM_ADMIN_ACCESS"
	ViewAllUsers      Permission = "VIEW_ALL_USERS"
	ManageUserRoles   Permission = "MANAGE_USER_ROLES"
	BotBasicAccess    Permission = "BOT_BASIC_ACCESS"
	BotManageState    Permission = "BOT_MANAGE_STATE"

	GitHubReadRepo    Permission = "GITHUB_READ_REPO"
	GitHubReadIssues  Permission = "GITHUB_READ_ISSUES"
	GitHubReadPRs     Permission = "GITHUB_READ_PRS"
	GitHubSearchCode  Permission = "GITHUB_SEARCH_CODE"
	GitHubWriteIssues Permission = "GITHUB_WRITE_ISSUES"
	GitHubWritePRs    Permission = "GITHUB_WRITE_PRS"
	GitHubCreateRepo  Permission = "GITHUB_CREATE_REPO"
	GitHubAdmin       Permission = "GITHUB_ADMIN"

	JiraReadProjects Permission = "JIRA_READ_PROJECTS"
	JiraReadIssues   Permission = "JIRA_READ_ISSUES"
	JiraSearchIssues Permission = "JIRA_SEARCH_ISSUES"
	JiraCreateIssue  Permission = "JIRA_CREATE_ISSUE"
	JiraUpdateIssue  Permission = "JIRA_UPDATE_ISSUE"
	JiraLinkIssues   Permission = "JIRA_LINK_ISSUES"
	JiraAdmin        Permission = "JIRA_ADMIN"

	GreptileSearchCodebase Permission = "GREPTILE_SEARCH_CODEBASE"
	GreptileGetIndexStatus Permission = "GREPTILE_GET_INDEX_STATUS"
	PerplexitySearchWeb    Permission = "PERPLEXITY_SEARCH_WEB"

	AdminAccessTools Permission = "ADMIN_ACCESS_TOOLS"
	AdminAccessUsers Permission = "ADMIN_ACCESS_USERS"
	AdminViewLogs    Permission = "ADMIN_VIEW_LOGS"
)

// RolePermissions is the closed role to permission table. Each tier
// strictly narrows the one above it; DEFAULT carries only basic bot
// interaction and web search.
var RolePermissions = map[Role]map[Permission]bool{
	RoleAdmin: permSet(
		SystemAdminAccess, ViewAllUsers, ManageUserRoles,
		BotBasicAccess, BotManageState,
		GitHubReadRepo, GitHubReadIssues, GitHubReadPRs, GitHubSearchCode,
		GitHubWriteIssues, GitHubWritePRs, GitHubCreateRepo, GitHubAdmin,
		JiraReadProjects, JiraReadIssues, JiraSearchIssues,
		JiraCreateIssue, JiraUpdateIssue, JiraLinkIssues, JiraAdmin,
		GreptileSearchCodebase, GreptileGetIndexStatus,
		PerplexitySearchWeb,
		AdminAccessTools, AdminAccessUsers, AdminViewLogs,
	),
	RoleDeveloper: permSet(
		BotBasicAccess,
		GitHubReadRepo, GitHubReadIssues, GitHubReadPRs, GitHubSearchCode,
		JiraReadProjects, JiraReadIssues, JiraSearchIssues,
		JiraCreateIssue, JiraUpdateIssue, JiraLinkIssues,
		GreptileSearchCodebase, GreptileGetIndexStatus,
		PerplexitySearchWeb,
	),
	RoleStakeholder: permSet(
		BotBasicAccess,
		GitHubReadRepo, GitHubReadIssues, GitHubReadPRs,
		JiraReadProjects, JiraReadIssues, JiraSearchIssues,
		PerplexitySearchWeb,
	),
	RoleDefault: permSet(
		BotBasicAccess,
		PerplexitySearchWeb,
	),
	RoleNone: {},
}

func permSet(perms ...Permission) map[Permission]bool {
	set := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		set[p] = true
	}
	return set
}

// PermissionsForRole returns the permission set for a role. Unknown
// roles get the empty set.
func PermissionsForRole(role Role) map[Permission]bool {
	if set, ok := RolePermissions[role]; ok {
		return set
	}
	return RolePermissions[RoleNone]
}

// User is the minimal identity the permission checker needs: an id and
// an assigned role.
type User struct {
	ID   string
	Role Role
}

// Manager answers permission questions. With RBAC disabled every check
// passes without consulting the table; the bot then behaves as a
// single-user assistant.
type Manager struct {
	rbacEnabled bool
	log         *slog.Logger
}

// NewManager builds a permission manager.
func NewManager(rbacEnabled bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		rbacEnabled: rbacEnabled,
		log:         logger.With("component", "access"),
	}
}

// HasPermission reports whether the user's role grants the permission.
// A nil user is denied everything (when RBAC is on).
func (m *Manager) HasPermission(user *User, perm Permission) bool {
	if !m.rbacEnabled {
		return true
	}
	if user == nil {
		m.log.Warn("permission check with no user", "permission", perm)
		return false
	}
	granted := PermissionsForRole(user.Role)[perm]
	if !granted {
		m.log.Info("permission denied", "user", user.ID, "role", user.Role, "permission", perm)
	}
	return granted
}
