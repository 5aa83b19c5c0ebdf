package udefrag

// FsType identifies the on-disk filesystem family a volume carries.
//
// The feature matrix in AllowedActions is driven off this value; code paths
// specific to NTFS also check for FsNtfs directly.
type FsType int

const (
	FsUnknown FsType = iota
	FsNtfs
	FsFat12
	FsFat16
	FsFat32
	FsFat32Unrecognized
	FsUdf
)

func (t FsType) String() string {
	switch t {
	case FsNtfs:
		return "NTFS"
	case FsFat12:
		return "FAT12"
	case FsFat16:
		return "FAT16"
	case FsFat32:
		return "FAT32"
	case FsFat32Unrecognized:
		return "FAT32 (unrecognized)"
	case FsUdf:
		return "UDF"
	default:
		return "unknown"
	}
}

func (t FsType) isFat() bool {
	switch t {
	case FsFat12, FsFat16, FsFat32, FsFat32Unrecognized:
		return true
	default:
		return false
	}
}

// AllowedActions is the feature matrix of §3: which strategies a volume's
// filesystem can support at all, before any per-job option is considered.
type AllowedActions struct {
	AllowDirDefrag bool
	AllowOptimize  bool
	AllowMftOpt    bool
}

// DefineAllowedActions fills the feature matrix for fsType, given whether the
// host OS is new enough (>= XP) to move the MFT.
func DefineAllowedActions(fsType FsType, hostSupportsMftMove bool) AllowedActions {
	if fsType != FsNtfs {
		return AllowedActions{}
	}

	return AllowedActions{
		AllowDirDefrag: true,
		AllowOptimize:  true,
		AllowMftOpt:    hostSupportsMftMove,
	}
}

// MftZones are the NTFS-specific LCN ranges analyze.go derives during
// analysis (§3). Start/End are inclusive-exclusive, like every other LCN
// range in this model.
type MftZones struct {
	Mft       LcnRange
	MftZone   LcnRange
	MftMirror LcnRange
}

// LcnRange is a half-open [Start, End) range of logical cluster numbers.
type LcnRange struct {
	Start Lcn
	End   Lcn
}

func (r LcnRange) Length() Length {
	if r.End <= r.Start {
		return 0
	}
	return Length(r.End - r.Start)
}

func (r LcnRange) IsEmpty() bool {
	return r.End <= r.Start
}

// Overlaps reports whether r and o share any cluster.
func (r LcnRange) Overlaps(o LcnRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// Geometry describes the fixed, volume-wide parameters the rest of the
// model is built against.
type Geometry struct {
	TotalClusters   uint64
	BytesPerCluster uint32
	FsType          FsType

	// MftZones is only meaningful when FsType == FsNtfs.
	MftZones MftZones
}

// ClustersPer256K is the legacy NT4/2000 move-ioctl chunk size (§4.4):
// 262144 bytes worth of clusters, floored at 1.
func (g Geometry) ClustersPer256K() uint64 {
	if g.BytesPerCluster == 0 {
		return 1
	}

	n := uint64(262144) / uint64(g.BytesPerCluster)
	if n < 1 {
		return 1
	}

	return n
}

// Validate enforces WrongGeometry (§7): a volume with no clusters or a zero
// cluster size cannot be modeled at all.
func (g Geometry) Validate() error {
	if g.TotalClusters == 0 || g.BytesPerCluster == 0 {
		return ErrWrongGeometry
	}

	return nil
}
