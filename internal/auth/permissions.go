package auth

const (
	PermViewWaste       = "view_waste"
	PermCreateWaste     = "create_waste"
	PermEditWaste       = "edit_waste"
	PermDeleteWaste     = "delete_waste"
	PermViewChemicals   = "view_chemicals"
	PermCreateChemicals = "create_chemicals"
	PermEditChemicals   = "edit_chemicals"
	PermDeleteChemicals = "delete_chemicals"
	PermViewActivityLog = "view_activity_log"
	PermManageUsers     = "manage_users"
)

// Permission is a named capability granted to roles.
type Permission struct {
	Name        string
	Description string
}

// BuiltinPermissions is the catalog seeded into self-hosted databases.
var BuiltinPermissions = []Permission{
	{Name: PermViewWaste, Description: "List waste items"},
	{Name: PermCreateWaste, Description: "Register waste items"},
	{Name: PermEditWaste, Description: "Edit waste items"},
	{Name: PermDeleteWaste, Description: "Delete waste items"},
	{Name: PermViewChemicals, Description: "List chemical inventory"},
	{Name: PermCreateChemicals, Description: "Add chemicals"},
	{Name: PermEditChemicals, Description: "Edit chemicals"},
	{Name: PermDeleteChemicals, Description: "Delete chemicals"},
	{Name: PermViewActivityLog, Description: "Read the activity log"},
	{Name: PermManageUsers, Description: "Assign roles to users"},
}
