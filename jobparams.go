package udefrag

import (
	"fmt"
)

// JobParams owns every piece of per-run state (§3 "Ownership"): the file
// list, fragmented-files list, free-region list, extent index, cluster
// map, and temporary-space list. A caller constructs one per job and
// drives it through Analyze / Defragment / Optimize / OptimizeMftHelper.
type JobParams struct {
	VolumeLetter string
	Kind         JobKind
	Options      Options

	platform PlatformShim
	router   *progressRouter

	geometry Geometry
	allowed  AllowedActions

	files           []*FileInfo
	byBaseID        map[BaseID]*FileInfo
	freeRegions     *FreeRegionList
	fragmented      *FragmentedFiles
	tempSpace       *TemporarySpaceList
	extentIndex     *FileBlockIndex
	clusterMap      *ClusterMap

	stats progressStats

	hostOsMajor, hostOsMinor int
}

type progressStats struct {
	files, directories, compressed uint64
	mftSize                        uint64
	processedClusters              uint64
	clustersToProcess               uint64
}

// NewJobParams constructs a job bound to letter, using platform for every
// external interaction and observer for progress/feedback/cancellation.
func NewJobParams(letter string, kind JobKind, options Options, platform PlatformShim, observer Observer) *JobParams {
	return &JobParams{
		VolumeLetter: letter,
		Kind:         kind,
		Options:      options,
		platform:     platform,
		router:       newProgressRouter(observer, options.RefreshInterval, options.TimeLimit),
		byBaseID:     make(map[BaseID]*FileInfo),
		freeRegions:  NewFreeRegionList(nil),
		fragmented:   NewFragmentedFiles(),
		tempSpace:    NewTemporarySpaceList(),
	}
}

// Release tears down per-run resources (the extent index's backing
// store, in particular) between strategies or at the end of the job's
// life (§3 lifecycle: "init -> analyze -> {...}* -> release").
func (jp *JobParams) Release() {
	if jp.extentIndex != nil {
		jp.extentIndex.idx.Destroy()
	}
}

// resetPassCounters clears only the per-pass progress counters; the model
// (file list, free regions, extent index, ...) is left untouched (§3
// lifecycle note).
func (jp *JobParams) resetPassCounters() {
	jp.stats.processedClusters = 0
}

// clearCurrentlyExcluded drops FlagCurrentlyExcluded from every file at
// the start of each atomic task (§4.7 step 3).
func (jp *JobParams) clearCurrentlyExcluded() {
	for _, fi := range jp.files {
		fi.Flags = fi.Flags.Clear(FlagCurrentlyExcluded)
	}
}

func (jp *JobParams) addFile(fi *FileInfo) {
	jp.files = append(jp.files, fi)
	jp.byBaseID[fi.BaseID] = fi
}

// progressSnapshot builds a ProgressInfo snapshot from current counters.
func (jp *JobParams) progressSnapshot(completionStatus int) ProgressInfo {
	return ProgressInfo{
		CurrentOperation:  jp.Kind,
		Files:             jp.stats.files,
		Directories:       jp.stats.directories,
		Compressed:        jp.stats.compressed,
		Fragmented:        uint64(jp.fragmented.Len()),
		MftSize:           jp.stats.mftSize,
		ClustersToProcess: jp.stats.clustersToProcess,
		ProcessedClusters: jp.stats.processedClusters,
		CompletionStatus:  completionStatus,
	}
}

func (jp *JobParams) deliverProgress(completionStatus int) {
	jp.router.Deliver(jp.progressSnapshot(completionStatus))
}

func (jp *JobParams) feedback(message string) {
	jp.router.Feedback(jp.progressSnapshot(0), message)
}

// String renders a short identifying label, used in log lines.
func (jp *JobParams) String() string {
	return fmt.Sprintf("%s[%s]", jp.VolumeLetter, jp.Kind)
}
