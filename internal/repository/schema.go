package repository

import (
	"reflect"

	"github.com/noah-isme/sma-presence-api/internal/models"
	"github.com/noah-isme/sma-presence-api/pkg/query"
)

// Model names as addressed by callers and the HTTP gateway.
const (
	ModelVerificationToken = "verification_token"
	ModelAccounts          = "accounts"
	ModelSessions          = "sessions"
	ModelUsers             = "users"
	ModelRole              = "role"
	ModelUserRoles         = "user_roles"
	ModelPermission        = "permission"
	ModelRolePermissions   = "role_permissions"
	ModelDatabaseMetric    = "database_metric"
	ModelSchedule          = "schedule"
	ModelSubject           = "subject"
	ModelTeacher           = "teacher"
	ModelTeacherSubjects   = "teacher_subjects"
	ModelLecture           = "lecture"
	ModelPresence          = "presence"
)

func serial(name string) query.Field {
	return query.Field{Name: name, Type: query.TypeInt, Default: query.DefaultAutoIncrement}
}

func column(name string, t query.FieldType) query.Field {
	return query.Field{Name: name, Type: t}
}

func nullable(name string, t query.FieldType) query.Field {
	return query.Field{Name: name, Type: t, Nullable: true}
}

func createdAt(name string) query.Field {
	return query.Field{Name: name, Type: query.TypeDateTime, Default: query.DefaultNow}
}

func updatedAt() query.Field {
	return query.Field{Name: "updated_at", Type: query.TypeDateTime, Default: query.DefaultUpdatedAt}
}

func belongsTo(name, target, fk string) query.Relation {
	return query.Relation{Name: name, Target: target, Kind: query.ToOne, Fields: []string{fk}, References: []string{"id"}}
}

func hasMany(name, target, fk string) query.Relation {
	return query.Relation{Name: name, Target: target, Kind: query.ToMany, Fields: []string{"id"}, References: []string{fk}}
}

var pk = query.NewUniqueKey("id")

// Schema describes the fifteen tables of the presence store.
var Schema = query.MustSchema(
	&query.Model{
		Name:  ModelVerificationToken,
		Table: "verification_token",
		Fields: []query.Field{
			column("identifier", query.TypeString),
			column("token", query.TypeString),
			column("expires", query.TypeDateTime),
		},
		Uniques: []query.UniqueKey{query.NewUniqueKey("identifier", "token")},
	},
	&query.Model{
		Name:  ModelAccounts,
		Table: "accounts",
		Fields: []query.Field{
			serial("id"),
			column("userId", query.TypeInt),
			column("type", query.TypeString),
			column("provider", query.TypeString),
			column("providerAccountId", query.TypeString),
			nullable("refresh_token", query.TypeString),
			nullable("access_token", query.TypeString),
			nullable("expires_at", query.TypeBigInt),
			nullable("token_type", query.TypeString),
			nullable("scope", query.TypeString),
			nullable("id_token", query.TypeString),
			nullable("session_state", query.TypeString),
		},
		PrimaryKey: pk,
	},
	&query.Model{
		Name:  ModelSessions,
		Table: "sessions",
		Fields: []query.Field{
			serial("id"),
			column("sessionToken", query.TypeString),
			column("userId", query.TypeInt),
			column("expires", query.TypeDateTime),
		},
		PrimaryKey: pk,
	},
	&query.Model{
		Name:  ModelUsers,
		Table: "users",
		Fields: []query.Field{
			serial("id"),
			nullable("name", query.TypeString),
			column("email", query.TypeString),
			nullable("emailVerified", query.TypeDateTime),
			nullable("image", query.TypeString),
		},
		PrimaryKey: pk,
		Relations: []query.Relation{
			hasMany("presence", ModelPresence, "user_id"),
			hasMany("user_roles", ModelUserRoles, "user_id"),
		},
	},
	&query.Model{
		Name:  ModelRole,
		Table: "role",
		Fields: []query.Field{
			serial("id"),
			column("name", query.TypeString),
			nullable("description", query.TypeString),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Uniques:    []query.UniqueKey{query.NewUniqueKey("name")},
		Relations: []query.Relation{
			hasMany("user_roles", ModelUserRoles, "role_id"),
			hasMany("role_permissions", ModelRolePermissions, "role_id"),
		},
	},
	&query.Model{
		Name:  ModelUserRoles,
		Table: "user_roles",
		Fields: []query.Field{
			column("user_id", query.TypeInt),
			column("role_id", query.TypeInt),
			createdAt("assigned_at"),
		},
		PrimaryKey: query.NewUniqueKey("user_id", "role_id"),
		Relations: []query.Relation{
			belongsTo("users", ModelUsers, "user_id"),
			belongsTo("role", ModelRole, "role_id"),
		},
	},
	&query.Model{
		Name:  ModelPermission,
		Table: "permission",
		Fields: []query.Field{
			serial("id"),
			column("name", query.TypeString),
			nullable("description", query.TypeString),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Uniques:    []query.UniqueKey{query.NewUniqueKey("name")},
		Relations: []query.Relation{
			hasMany("role_permissions", ModelRolePermissions, "permission_id"),
		},
	},
	&query.Model{
		Name:  ModelRolePermissions,
		Table: "role_permissions",
		Fields: []query.Field{
			column("role_id", query.TypeInt),
			column("permission_id", query.TypeInt),
			createdAt("assigned_at"),
		},
		PrimaryKey: query.NewUniqueKey("role_id", "permission_id"),
		Relations: []query.Relation{
			belongsTo("role", ModelRole, "role_id"),
			belongsTo("permission", ModelPermission, "permission_id"),
		},
	},
	&query.Model{
		Name:  ModelDatabaseMetric,
		Table: "database_metric",
		Fields: []query.Field{
			serial("id"),
			column("query_time", query.TypeInt),
			column("row_count", query.TypeInt),
			createdAt("timestamp"),
		},
		PrimaryKey: pk,
	},
	&query.Model{
		Name:  ModelSchedule,
		Table: "schedule",
		Fields: []query.Field{
			serial("id"),
			column("date", query.TypeDateTime),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Relations: []query.Relation{
			hasMany("lecture", ModelLecture, "schedule_id"),
		},
	},
	&query.Model{
		Name:  ModelSubject,
		Table: "subject",
		Fields: []query.Field{
			serial("id"),
			column("name", query.TypeString),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Relations: []query.Relation{
			hasMany("lecture", ModelLecture, "subject_id"),
			hasMany("teacher_subjects", ModelTeacherSubjects, "subject_id"),
		},
	},
	&query.Model{
		Name:  ModelTeacher,
		Table: "teacher",
		Fields: []query.Field{
			serial("id"),
			column("name", query.TypeString),
			nullable("email", query.TypeString),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Relations: []query.Relation{
			hasMany("lecture", ModelLecture, "teacher_id"),
			hasMany("teacher_subjects", ModelTeacherSubjects, "teacher_id"),
		},
	},
	&query.Model{
		Name:  ModelTeacherSubjects,
		Table: "teacher_subjects",
		Fields: []query.Field{
			column("teacher_id", query.TypeInt),
			column("subject_id", query.TypeInt),
			createdAt("assigned_at"),
			{Name: "is_primary", Type: query.TypeBool, Default: query.DefaultStatic},
		},
		PrimaryKey: query.NewUniqueKey("teacher_id", "subject_id"),
		Relations: []query.Relation{
			belongsTo("teacher", ModelTeacher, "teacher_id"),
			belongsTo("subject", ModelSubject, "subject_id"),
		},
	},
	&query.Model{
		Name:  ModelLecture,
		Table: "lecture",
		Fields: []query.Field{
			serial("id"),
			column("subject_id", query.TypeInt),
			column("teacher_id", query.TypeInt),
			column("schedule_id", query.TypeInt),
			column("start_time", query.TypeDateTime),
			column("end_time", query.TypeDateTime),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Relations: []query.Relation{
			belongsTo("subject", ModelSubject, "subject_id"),
			belongsTo("teacher", ModelTeacher, "teacher_id"),
			belongsTo("schedule", ModelSchedule, "schedule_id"),
			hasMany("presence", ModelPresence, "lecture_id"),
		},
	},
	&query.Model{
		Name:  ModelPresence,
		Table: "presence",
		Fields: []query.Field{
			serial("id"),
			column("user_id", query.TypeInt),
			column("lecture_id", query.TypeInt),
			column("is_present", query.TypeBool),
			createdAt("created_at"),
			updatedAt(),
		},
		PrimaryKey: pk,
		Uniques:    []query.UniqueKey{query.NewUniqueKey("user_id", "lecture_id")},
		Relations: []query.Relation{
			belongsTo("users", ModelUsers, "user_id"),
			belongsTo("lecture", ModelLecture, "lecture_id"),
		},
	},
)

// rowTypes maps every model to the struct its rows scan into.
var rowTypes = map[string]reflect.Type{
	ModelVerificationToken: reflect.TypeOf(models.VerificationToken{}),
	ModelAccounts:          reflect.TypeOf(models.Account{}),
	ModelSessions:          reflect.TypeOf(models.Session{}),
	ModelUsers:             reflect.TypeOf(models.User{}),
	ModelRole:              reflect.TypeOf(models.Role{}),
	ModelUserRoles:         reflect.TypeOf(models.UserRole{}),
	ModelPermission:        reflect.TypeOf(models.Permission{}),
	ModelRolePermissions:   reflect.TypeOf(models.RolePermission{}),
	ModelDatabaseMetric:    reflect.TypeOf(models.DatabaseMetric{}),
	ModelSchedule:          reflect.TypeOf(models.Schedule{}),
	ModelSubject:           reflect.TypeOf(models.Subject{}),
	ModelTeacher:           reflect.TypeOf(models.Teacher{}),
	ModelTeacherSubjects:   reflect.TypeOf(models.TeacherSubject{}),
	ModelLecture:           reflect.TypeOf(models.Lecture{}),
	ModelPresence:          reflect.TypeOf(models.Presence{}),
}

// mustModel resolves a descriptor declared above.
func mustModel(name string) *query.Model {
	m, ok := Schema.Model(name)
	if !ok {
		panic("repository: unknown model " + name)
	}
	return m
}
