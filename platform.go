package udefrag

import "time"

// VolumeInformation is get_volume_information's result (§6.1).
type VolumeInformation struct {
	TotalBytes      uint64
	FreeBytes       uint64
	BytesPerCluster uint32
	TotalClusters   uint64
	FsName          string
	IsDirty         bool
	Label           string

	// NtfsData is only populated when FsName indicates NTFS.
	NtfsData NtfsVolumeData
}

// NtfsVolumeData mirrors the NTFS_DATA fields the analyzer needs to derive
// MftZones (§3).
type NtfsVolumeData struct {
	MftStartLcn               Lcn
	MftValidDataLength        uint64
	MftZoneStart               Lcn
	MftZoneEnd                 Lcn
	Mft2StartLcn                Lcn
	BytesPerFileRecordSegment   uint32
	BytesPerCluster             uint32
}

// ScanFlags are the flags passed to ScanDisk / Ftw / GetFreeVolumeRegions
// (§6.1).
type ScanFlags uint32

const (
	ScanDumpFiles ScanFlags = 1 << iota
	ScanAllowPartialScan
	ScanSkipResidentStreams
	ScanRecursive
)

// OpenMode distinguishes why a file is being opened (§6.1's
// defrag_fopen(file, OpenForMove)).
type OpenMode int

const (
	OpenForMove OpenMode = iota
	OpenForDump
)

// FileHandle is an opaque handle returned by Open; Close releases it.
type FileHandle interface{}

// ScanProgressFunc is invoked periodically during a disk scan.
type ScanProgressFunc func(filesScanned uint64)

// TerminatorFunc reports whether the caller has asked the current
// operation to stop.
type TerminatorFunc func() bool

// PlatformShim is the external collaborator of §6.1: everything the core
// needs from the OS but never implements itself. Production code talks to
// the real filesystem driver; tests talk to internal/testvolume's
// synthetic implementation.
type PlatformShim interface {
	// GetVolumeInformation reads static volume parameters.
	GetVolumeInformation(letter string) (VolumeInformation, error)

	// GetFreeVolumeRegions enumerates free regions, honoring
	// ScanAllowPartialScan.
	GetFreeVolumeRegions(letter string, flags ScanFlags) ([]FreeRegion, error)

	// ScanDisk walks the whole volume's file tree.
	ScanDisk(letter string, flags ScanFlags, progress ScanProgressFunc, terminator TerminatorFunc) ([]*FileInfo, error)

	// Open opens a file for movement or for re-reading its blockmap.
	Open(fi *FileInfo, mode OpenMode) (FileHandle, error)

	// Close releases a handle returned by Open.
	Close(h FileHandle) error

	// DumpFile re-reads a file's current blockmap from the OS (the
	// "redump" step of §4.4 step 5).
	DumpFile(h FileHandle) (*Blockmap, error)

	// MoveFileClusters is the single move ioctl (§6.1): must report
	// success iff the clusters now live at target.
	MoveFileClusters(h FileHandle, vcn Vcn, targetLcn Lcn, length Length) error

	// IsFileLocked probes whether the OS currently has fi locked,
	// independent of attempting to open it for movement (§4.6 step 5,
	// §4.3's MAGIC_LOCK_PROBE cap).
	IsFileLocked(fi *FileInfo) (bool, error)

	// GetDriveType classifies the underlying media (fixed, removable,
	// network, ...). Not modeled further by the core; kept for parity
	// with §6.1.
	GetDriveType(letter string) (string, error)

	// GetOsVersion reports the host OS version, from which the analyzer
	// decides whether the host is new enough (>= XP) to move the MFT (§4.9).
	GetOsVersion() (major, minor int)
}

// clockNow is overridable in tests; production code uses time.Now.
var clockNow = time.Now
