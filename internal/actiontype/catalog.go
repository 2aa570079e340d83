package actiontype

// Catalog holds the action families of every console feature.
var Catalog = NewRegistry()

// Organizations
var (
	GetOrganizations    = Catalog.MustRegister("GET_ORGANIZATIONS")
	GetOrganization     = Catalog.MustRegister("GET_ORGANIZATION")
	CreateOrganization  = Catalog.MustRegister("CREATE_ORGANIZATION")
	UpdateOrganization  = Catalog.MustRegister("UPDATE_ORGANIZATION")
	DeleteOrganization  = Catalog.MustRegister("DELETE_ORGANIZATION")
	RestoreOrganization = Catalog.MustRegister("RESTORE_ORGANIZATION")
)

// Users
var (
	GetUsers        = Catalog.MustRegister("GET_USERS")
	GetUser         = Catalog.MustRegister("GET_USER")
	CreateUser      = Catalog.MustRegister("CREATE_USER")
	UpdateUser      = Catalog.MustRegister("UPDATE_USER")
	DeleteUser      = Catalog.MustRegister("DELETE_USER")
	BulkInsertUsers = Catalog.MustRegister("BULK_INSERT_USERS")
)

// Business units
var (
	GetBusinessUnits   = Catalog.MustRegister("GET_BUSINESS_UNITS")
	CreateBusinessUnit = Catalog.MustRegister("CREATE_BUSINESS_UNIT")
	UpdateBusinessUnit = Catalog.MustRegister("UPDATE_BUSINESS_UNIT")
	DeleteBusinessUnit = Catalog.MustRegister("DELETE_BUSINESS_UNIT")
)

// Regulations
var (
	GetRegulations        = Catalog.MustRegister("GET_REGULATIONS")
	BulkInsertRegulations = Catalog.MustRegister("BULK_INSERT_REGULATIONS")
	DeleteRegulation      = Catalog.MustRegister("DELETE_REGULATION")
)

// Tasks
var (
	GetTasks   = Catalog.MustRegister("GET_TASKS")
	CreateTask = Catalog.MustRegister("CREATE_TASK")
	UpdateTask = Catalog.MustRegister("UPDATE_TASK")
	DeleteTask = Catalog.MustRegister("DELETE_TASK")
)

// Session and downloads
var (
	SignIn         = Catalog.MustRegister("SIGN_IN")
	SignOut        = Catalog.MustRegister("SIGN_OUT")
	GetCurrentUser = Catalog.MustRegister("GET_CURRENT_USER")
	DownloadFile   = Catalog.MustRegister("DOWNLOAD_FILE")
)
