package rbac

// Default policy. Instructors also hold the student viewing permissions so
// they can preview their own content.
var RolePermissions = map[string][]string{
	"student": {
		"course:view",
		"lesson:view",
		"quiz:view",
		"session:start",
		"session:save",
		"session:finish",
		"session:view-own",
		"user:change_password",
	},
	"instructor": {
		"course:view",
		"course:create",
		"course:manage_own",
		"lesson:view",
		"lesson:manage",
		"quiz:view",
		"quiz:view-full",
		"quiz:create",
		"quiz:manage",
		"media:upload",
		"session:view-all",
		"user:change_password",
	},
	"admin": {
		"*", // everything, including session:cancel and users:list
	},
}
