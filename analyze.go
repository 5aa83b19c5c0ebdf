package udefrag

import "sort"

// Analyze runs §4.6's analysis pass: it is always the first step of every
// job, since every strategy needs the geometry, free-region list, and
// file/fragmented-files/extent-index state it builds.
func (jp *JobParams) Analyze() error {
	jp.feedback("analysis started")

	if err := jp.readGeometry(); err != nil {
		return err
	}

	if err := jp.checkAllowedActions(); err != nil {
		return err
	}

	if err := jp.enumerateFreeRegions(); err != nil {
		return err
	}

	if jp.geometry.FsType == FsNtfs {
		jp.deriveMftZones()
	}

	if err := jp.walkFileTree(); err != nil {
		return err
	}

	jp.doubleCheckWellKnownLocked()

	jp.feedback("analysis completed")
	jp.deliverProgress(1)

	return nil
}

// readGeometry is §4.6 step 1: read volume geometry, classify fs_type,
// reset statistics, and refuse to proceed on a dirty volume (§7) unless the
// caller only asked for analysis.
func (jp *JobParams) readGeometry() error {
	info, err := jp.platform.GetVolumeInformation(jp.VolumeLetter)
	if err != nil {
		return log.Wrap(err)
	}

	fsType := classifyFs(info.FsName)

	jp.geometry = Geometry{
		TotalClusters:   info.TotalClusters,
		BytesPerCluster: info.BytesPerCluster,
		FsType:          fsType,
	}

	if err := jp.geometry.Validate(); err != nil {
		return err
	}

	if info.IsDirty && jp.Kind != JobAnalysis {
		return ErrDirtyVolume
	}

	jp.stats = progressStats{}
	jp.clusterMap = NewClusterMap(info.TotalClusters, jp.geometry.ClustersPer256K())

	detailedPrint("%s: geometry %s, %d clusters of %d bytes", jp, fsType, info.TotalClusters, info.BytesPerCluster)
	detailedPrint("%s: volume label %q, dirty=%v", jp, info.Label, info.IsDirty)

	return nil
}

// classifyFs maps the platform shim's free-form filesystem name to an
// FsType, mirroring the string compares of volume.c's get_filesystem_name.
func classifyFs(name string) FsType {
	switch name {
	case "NTFS":
		return FsNtfs
	case "FAT12":
		return FsFat12
	case "FAT16":
		return FsFat16
	case "FAT32":
		return FsFat32
	case "UDF":
		return FsUdf
	case "":
		return FsUnknown
	default:
		return FsFat32Unrecognized
	}
}

// checkAllowedActions is §4.6 step 6: fill the feature matrix and refuse an
// incompatible job before touching the disk any further.
func (jp *JobParams) checkAllowedActions() error {
	major, minor := jp.platform.GetOsVersion()
	jp.hostOsMajor, jp.hostOsMinor = major, minor

	hostSupportsMftMove := major > 5 || (major == 5 && minor >= 1) // >= XP

	jp.allowed = DefineAllowedActions(jp.geometry.FsType, hostSupportsMftMove)

	switch jp.Kind {
	case JobFullOptimization, JobQuickOptimization:
		if !jp.allowed.AllowOptimize {
			return ErrUnsupportedFs
		}
	case JobMftOptimization:
		if jp.geometry.FsType != FsNtfs {
			return ErrUnsupportedFs
		}
		if !jp.allowed.AllowMftOpt {
			return ErrUnsupportedHost
		}
	}

	return nil
}

// enumerateFreeRegions is §4.6 step 2: enumerate free regions and mark each
// in the cluster map.
func (jp *JobParams) enumerateFreeRegions() error {
	regions, err := jp.platform.GetFreeVolumeRegions(jp.VolumeLetter, ScanAllowPartialScan)
	if err != nil {
		return log.Wrap(err)
	}

	jp.freeRegions = NewFreeRegionList(regions)

	jp.freeRegions.IterForward(func(r FreeRegion) bool {
		jp.clusterMapPaint(r.Lcn, r.Length, CellFree)
		return true
	})

	return nil
}

// deriveMftZones is §4.6 step 3: on NTFS, compute mft_zones from the
// platform's NtfsVolumeData and remove the MFT zone range from free regions
// so later searches never try to place a moved file inside it.
func (jp *JobParams) deriveMftZones() {
	info, err := jp.platform.GetVolumeInformation(jp.VolumeLetter)
	if err != nil {
		debugPrint("deriveMftZones: re-reading NtfsVolumeData failed: %v", err)
		return
	}

	ntfs := info.NtfsData

	mftClusters := Length(0)
	if jp.geometry.BytesPerCluster > 0 {
		mftClusters = Length((ntfs.MftValidDataLength + uint64(jp.geometry.BytesPerCluster) - 1) / uint64(jp.geometry.BytesPerCluster))
	}

	mft := LcnRange{Start: ntfs.MftStartLcn, End: Lcn(uint64(ntfs.MftStartLcn) + uint64(mftClusters))}
	mftZone := LcnRange{Start: ntfs.MftZoneStart, End: ntfs.MftZoneEnd}

	var mftMirror LcnRange
	if ntfs.Mft2StartLcn != 0 {
		mirrorClusters := Length(16)
		mftMirror = LcnRange{Start: ntfs.Mft2StartLcn, End: Lcn(uint64(ntfs.Mft2StartLcn) + uint64(mirrorClusters))}
	}

	jp.geometry.MftZones = MftZones{Mft: mft, MftZone: mftZone, MftMirror: mftMirror}

	if !mftZone.IsEmpty() {
		jp.freeRegions.Sub(mftZone.Start, mftZone.Length())
		jp.clusterMapPaint(mftZone.Start, mftZone.Length(), CellMftReserved)
	}
}

// walkFileTree is §4.6 step 4: walk the file tree, apply §6.2 filters,
// maintain counters, populate the fragmented-files list and extent index,
// then sort per §12.5 (UD_SORTING / UD_SORTING_ORDER).
func (jp *JobParams) walkFileTree() error {
	progress := func(scanned uint64) {
		jp.stats.files = scanned
		jp.deliverProgress(0)
	}
	terminator := func() bool { return jp.router.Cancelled() }

	files, err := jp.platform.ScanDisk(jp.VolumeLetter, ScanDumpFiles|ScanRecursive, progress, terminator)
	if err != nil {
		return log.Wrap(err)
	}

	jp.extentIndex = NewFileBlockIndex()

	optimizing := jp.Kind == JobFullOptimization || jp.Kind == JobQuickOptimization || jp.Kind == JobMftOptimization

	for _, fi := range files {
		if jp.router.Cancelled() {
			break
		}

		if fi.Flags.Has(FlagDirectory) {
			jp.stats.directories++
		} else {
			jp.stats.files++
		}
		if fi.Flags.Has(FlagCompressed) {
			jp.stats.compressed++
		}
		if fi.Path == mftPath {
			jp.stats.mftSize = fi.Size
		}

		if !optimizing && jp.fileExcludedByPolicy(fi) {
			fi.Flags = fi.Flags.Set(FlagExcludedByPath)
		}

		jp.addFile(fi)

		if fi.EligibleForFragmentedList() {
			jp.fragmented.Reconcile(fi)
		}

		jp.extentIndex.InsertFile(fi)

		jp.stats.clustersToProcess += uint64(fi.Clusters())
	}

	jp.sortFiles()

	return nil
}

// fileExcludedByPolicy is §6.2's filter chain: path filters (UD_IN_FILTER /
// UD_EX_FILTER), then size and fragment-count limits. Optimization jobs
// never call this — §4.6 step 4 is explicit that no filter excludes a file
// from an optimize pass, since optimize reorders the whole volume.
func (jp *JobParams) fileExcludedByPolicy(fi *FileInfo) bool {
	if ExcludeByPath(fi.Path, jp.Options.InFilter, jp.Options.ExFilter) {
		return true
	}
	if jp.Options.SizeLimit > 0 && fi.Size > jp.Options.SizeLimit {
		return true
	}
	if jp.Options.FragmentsLimit > 0 && uint64(fi.Fragments()) < jp.Options.FragmentsLimit {
		return true
	}
	return false
}

// doubleCheckWellKnownLocked is §4.6 step 5: probe IsFileLocked exactly
// once for every file IsWellKnownLocked names, coloring it Locked when the
// probe agrees. A probe that disagrees (file turns out not to be locked) is
// logged but never changes the file's flags — a false positive in
// IsWellKnownLocked costs nothing but a log line.
func (jp *JobParams) doubleCheckWellKnownLocked() {
	for _, fi := range jp.files {
		if !IsWellKnownLocked(fi.Path) {
			continue
		}

		locked, err := jp.platform.IsFileLocked(fi)
		if err != nil {
			debugPrint("doubleCheckWellKnownLocked: probe failed for %s: %v", fi.Path, err)
			continue
		}

		if locked {
			fi.Flags = fi.Flags.Set(FlagLocked)
		} else {
			detailedPrint("%s is well-known-locked but the probe reports it unlocked", fi.Path)
		}
	}
}

// sortFiles implements §12.5: the walk order is OS-dependent, so the
// analyzer re-sorts the resulting slice by UD_SORTING / UD_SORTING_ORDER
// before handing it to any downstream strategy.
func (jp *JobParams) sortFiles() {
	less := func(a, b *FileInfo) bool {
		switch jp.Options.Sorting {
		case SortSize:
			return a.Size < b.Size
		case SortCTime:
			return a.CreationTime.Before(b.CreationTime)
		case SortMTime:
			return a.LastModified.Before(b.LastModified)
		case SortATime:
			return a.LastAccessed.Before(b.LastAccessed)
		default:
			return a.Path < b.Path
		}
	}

	files := jp.files
	sort.Slice(files, func(i, j int) bool {
		if jp.Options.SortingOrder == SortDescending {
			return less(files[j], files[i])
		}
		return less(files[i], files[j])
	})
}
