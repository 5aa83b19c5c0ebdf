package udefrag

import "errors"

// Job-level errors (§7): these short-circuit a strategy. Per-file failures
// never surface as one of these — they are swallowed into FileFlag bits
// instead (§7 propagation policy).
var (
	ErrWrongGeometry   = errors.New("udefrag: zero total_clusters or bytes_per_cluster")
	ErrUnsupportedFs   = errors.New("udefrag: job incompatible with filesystem")
	ErrUnsupportedHost = errors.New("udefrag: job incompatible with host OS")
	ErrDirtyVolume     = errors.New("udefrag: volume is dirty")
	ErrOutOfMemory     = errors.New("udefrag: allocation failure")
)

// MoveOutcome classifies the four variants of §4.4 step 5.
type MoveOutcome int

const (
	// MoveFileLocked means the OS refused to open the file for movement.
	MoveFileLocked MoveOutcome = iota
	// MoveCalculatedSuccess means the new blockmap could not be re-read,
	// so the engine trusts the requested move and synthesizes it.
	MoveCalculatedSuccess
	// MoveDeterminedFailure means the re-read blockmap is unchanged.
	MoveDeterminedFailure
	// MoveDeterminedSuccess means the requested range now lives
	// contiguously at the target.
	MoveDeterminedSuccess
	// MoveDeterminedPartialSuccess means the blockmap changed but the
	// range isn't fully contiguous at the target.
	MoveDeterminedPartialSuccess
)

func (o MoveOutcome) isSuccess() bool {
	switch o {
	case MoveCalculatedSuccess, MoveDeterminedSuccess, MoveDeterminedPartialSuccess:
		return true
	default:
		return false
	}
}

// JobKind enumerates the job kinds of §6.3.
type JobKind int

const (
	JobAnalysis JobKind = iota
	JobDefragmentation
	JobFullOptimization
	JobQuickOptimization
	JobMftOptimization
)

func (k JobKind) String() string {
	switch k {
	case JobAnalysis:
		return "analysis"
	case JobDefragmentation:
		return "defragmentation"
	case JobFullOptimization:
		return "full optimization"
	case JobQuickOptimization:
		return "quick optimization"
	case JobMftOptimization:
		return "mft optimization"
	default:
		return "unknown job"
	}
}
