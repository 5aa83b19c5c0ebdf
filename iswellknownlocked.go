package udefrag

import "strings"

// mftPath is the canonical path analyze.go and search.go use to recognize
// the MFT itself, which is always excluded from "skip MFT" searches but,
// unlike the other well-known-locked files, is NOT itself locked.
const mftPath = `\$Mft`

// wellKnownLockedExact enumerates the paths analyze.go double-checks with
// a single IsFileLocked probe during analysis (§4.6 step 5, §12.4): MFT
// records other than $Mft itself, the pagefile, the hibernation file, and
// the registry hive files (including per-user hives under
// \system32\config\).
var wellKnownLockedExact = []string{
	`\$MftMirr`,
	`\$LogFile`,
	`\$Volume`,
	`\$AttrDef`,
	`\$Bitmap`,
	`\$Boot`,
	`\$BadClus`,
	`\$Secure`,
	`\$UpCase`,
	`\$Extend`,
	`\pagefile.sys`,
	`\hiberfil.sys`,
	`\swapfile.sys`,
}

const wellKnownLockedConfigDir = `\system32\config\`

// IsWellKnownLocked reports whether path names one of the files analyze.go
// treats as "almost certainly locked by the OS" and therefore worth a
// single confirming probe rather than trusting the file-walk's flags
// blindly (§4.6 step 5). $Mft itself is excluded — it is the one MFT
// record the engine is specifically trying to defragment/optimize.
func IsWellKnownLocked(path string) bool {
	candidate := stripObjectManagerPrefix(path)

	if candidate == mftPath {
		return false
	}

	for _, known := range wellKnownLockedExact {
		if strings.EqualFold(candidate, known) {
			return true
		}
	}

	lower := strings.ToLower(candidate)
	if strings.Contains(lower, strings.ToLower(wellKnownLockedConfigDir)) {
		return true
	}

	return false
}
