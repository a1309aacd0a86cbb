package privilege

import (
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"
)

// Privilege is a named capability granted through roles.
type Privilege string

// The closed set of privileges.
const (
	Add                          Privilege = "add"
	EditPending                  Privilege = "edit_pending"
	DeletePending                Privilege = "delete_pending"
	Edit                         Privilege = "edit"
	Delete                       Privilege = "delete"
	Publish                      Privilege = "publish"
	Borrow                       Privilege = "borrow"
	Expunge                      Privilege = "expunge"
	Duplicate                    Privilege = "duplicate"
	EditHTML                     Privilege = "edit_html"
	SwitchTheme                  Privilege = "switch_theme"
	PoseAsOtherUser              Privilege = "pose_as_other_user"
	AssignAnyPageType            Privilege = "assign_any_page_type"
	EditHeadItems                Privilege = "edit_head_items"
	EditUniqueNames              Privilege = "edit_unique_names"
	EditFragileSlugs             Privilege = "edit_fragile_slugs"
	EditHomePageNavLink          Privilege = "edit_home_page_nav_link"
	EditFormAdvancedOptions      Privilege = "edit_form_advanced_options"
	ManageAllowableRelationships Privilege = "manage_allowable_relationships"
	ViewSensitiveData            Privilege = "view_sensitive_data"
	ManageIntegrationSettings    Privilege = "manage_integration_settings"
	EditRawLDAPFilters           Privilege = "edit_raw_ldap_filters"
	UploadFullSizeImage          Privilege = "upload_full_size_image"
	Upgrade                      Privilege = "upgrade"
	DBMaintenance                Privilege = "db_maintenance"
	UpdateURLs                   Privilege = "update_urls"
)

var all = []Privilege{
	Add, EditPending, DeletePending, Edit, Delete, Publish, Borrow, Expunge,
	Duplicate, EditHTML, SwitchTheme, PoseAsOtherUser, AssignAnyPageType,
	EditHeadItems, EditUniqueNames, EditFragileSlugs, EditHomePageNavLink,
	EditFormAdvancedOptions, ManageAllowableRelationships, ViewSensitiveData,
	ManageIntegrationSettings, EditRawLDAPFilters, UploadFullSizeImage,
	Upgrade, DBMaintenance, UpdateURLs,
}

// All returns every privilege.
func All() []Privilege {
	return append([]Privilege(nil), all...)
}

// Parse returns the privilege named s.
func Parse(s string) (Privilege, error) {
	for _, p := range all {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("privilege: unknown privilege %q", s)
}

// Role unique names in the default table.
const (
	RoleContributor = "contribute_only_role"
	RoleEditor      = "editor_user_role"
	RolePowerUser   = "power_user_role"
	RoleAdmin       = "admin_role"
)

// Table maps role unique names to the privileges they grant.
type Table map[string][]Privilege

// DefaultTable returns the built-in role table.
func DefaultTable() Table {
	contributor := []Privilege{Add, EditPending, DeletePending}
	editor := append(append([]Privilege(nil), contributor...),
		Edit, Delete, Publish, Borrow, Expunge, SwitchTheme)
	power := append(append([]Privilege(nil), editor...),
		EditHTML, UploadFullSizeImage)
	admin := []Privilege{
		Add, EditPending, DeletePending, Edit, Delete, Publish, Borrow, Expunge,
		Duplicate, EditHTML, SwitchTheme, PoseAsOtherUser, AssignAnyPageType,
		EditHeadItems, EditUniqueNames, EditFragileSlugs, EditHomePageNavLink,
		EditFormAdvancedOptions, ManageAllowableRelationships, ViewSensitiveData,
		ManageIntegrationSettings, EditRawLDAPFilters, UploadFullSizeImage,
		Upgrade, DBMaintenance, UpdateURLs,
	}
	return Table{
		RoleContributor: contributor,
		RoleEditor:      editor,
		RolePowerUser:   power,
		RoleAdmin:       admin,
	}
}

// Grants reports whether role grants p.
func (t Table) Grants(role string, p Privilege) bool {
	for _, have := range t[role] {
		if have == p {
			return true
		}
	}
	return false
}

// Roles returns the role names in the table, sorted.
func (t Table) Roles() []string {
	out := make([]string, 0, len(t))
	for r := range t {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// ParseTable decodes a YAML (or JSON) table of role name to privilege list.
// Unknown privileges are rejected.
func ParseTable(data []byte) (Table, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("privilege: parse table: %w", err)
	}
	t := make(Table, len(raw))
	for role, names := range raw {
		privs := make([]Privilege, 0, len(names))
		for _, name := range names {
			p, err := Parse(name)
			if err != nil {
				return nil, fmt.Errorf("privilege: role %q: %w", role, err)
			}
			privs = append(privs, p)
		}
		t[role] = privs
	}
	return t, nil
}

// LoadTable reads a table file. The file replaces the default table
// entirely; roles it does not list grant nothing.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("privilege: read table: %w", err)
	}
	return ParseTable(data)
}

// YAML renders t in the form ParseTable reads.
func (t Table) YAML() ([]byte, error) {
	return yaml.Marshal(map[string][]Privilege(t))
}
