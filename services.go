package bootstrap

// Names of the services registered by the runtime before any composer runs.
const (
	ServiceLogger          = "logger"
	ServiceProfiler        = "profiler"
	ServiceTypeLoader      = "typeLoader"
	ServiceTypeFinder      = "typeFinder"
	ServiceAppCaches       = "appCaches"
	ServiceDatabaseFactory = "databaseFactory"
	ServiceSettings        = "settings"
	ServiceRuntimeState    = "runtimeState"
	ServiceMainDom         = "mainDom"
	ServiceLifecycleEvents = "lifecycleEvents"
)

// Collection names.
const (
	// ComponentsCollection holds the components initialized at the end of
	// boot.
	ComponentsCollection = "components"
	// ScheduledJobsCollection holds jobs run by the main instance scheduler.
	ScheduledJobsCollection = "scheduled-jobs"
)
