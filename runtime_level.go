package bootstrap

// RuntimeLevel is the boot readiness of the process.
type RuntimeLevel int

const (
	LevelUnknown RuntimeLevel = iota
	LevelBooting
	LevelInstall
	LevelUpgrade
	LevelRun
	LevelBootFailed
)

func (l RuntimeLevel) String() string {
	switch l {
	case LevelBooting:
		return "Booting"
	case LevelInstall:
		return "Install"
	case LevelUpgrade:
		return "Upgrade"
	case LevelRun:
		return "Run"
	case LevelBootFailed:
		return "BootFailed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the level is final for this process.
func (l RuntimeLevel) Terminal() bool {
	switch l {
	case LevelInstall, LevelUpgrade, LevelRun, LevelBootFailed:
		return true
	default:
		return false
	}
}

// canTransition implements the level state machine: Unknown moves to
// Booting, Booting moves to Install, Upgrade or Run, and any level may fail.
func canTransition(from, to RuntimeLevel) bool {
	if from == to || to == LevelBootFailed {
		return true
	}
	switch from {
	case LevelUnknown:
		return to == LevelBooting
	case LevelBooting:
		return to == LevelInstall || to == LevelUpgrade || to == LevelRun
	default:
		return false
	}
}

// RuntimeLevelReason explains why a level was chosen.
type RuntimeLevelReason int

const (
	ReasonUnknown RuntimeLevelReason = iota
	ReasonInstallNotConfigured
	ReasonInstallNoConnectivity
	ReasonInstallNoSchema
	ReasonUpgradeVersionMismatch
	ReasonRunUpToDate
	ReasonBootFailedOnException
	ReasonBootFailedOnDetermination
)

func (r RuntimeLevelReason) String() string {
	switch r {
	case ReasonInstallNotConfigured:
		return "InstallNotConfigured"
	case ReasonInstallNoConnectivity:
		return "InstallNoConnectivity"
	case ReasonInstallNoSchema:
		return "InstallNoSchema"
	case ReasonUpgradeVersionMismatch:
		return "UpgradeVersionMismatch"
	case ReasonRunUpToDate:
		return "RunUpToDate"
	case ReasonBootFailedOnException:
		return "BootFailedOnException"
	case ReasonBootFailedOnDetermination:
		return "BootFailedOnDetermination"
	default:
		return "Unknown"
	}
}
