// Package testvolume is an in-memory stand-in for a real NTFS/FAT volume,
// used to exercise the engine without a Windows host. It implements
// udefrag.PlatformShim against a synthetic cluster bitmap and file table
// instead of OS ioctls.
package testvolume

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-restruct/restruct"

	udefrag "github.com/udefrag/core"
)

// superblock is the synthetic boot-sector-equivalent record a Volume
// serializes its geometry to/from, grounded on the teacher's
// restruct.Unpack(raw, order, x) boot-sector parsing idiom — here used for
// round-tripping a fake volume's geometry rather than reading a real disk.
type superblock struct {
	TotalClusters   uint64
	BytesPerCluster uint32
	FsType          uint8
	IsDirty         uint8
}

// Volume is a fully in-memory filesystem: a cluster bitmap plus a flat file
// table. It is safe for concurrent use by a single JobParams (the engine
// never runs two strategies against one volume concurrently, per §5).
type Volume struct {
	mu sync.Mutex

	letter  string
	total   uint64
	bpc     uint32
	fsType  udefrag.FsType
	label   string
	dirty   bool
	osMajor int
	osMinor int

	ntfs udefrag.NtfsVolumeData

	allocated []bool // index by Lcn; true = in use
	files     []*udefrag.FileInfo

	locked map[string]bool
}

// New builds an empty volume of the given geometry, entirely free.
func New(letter string, totalClusters uint64, bytesPerCluster uint32, fsType udefrag.FsType) *Volume {
	return &Volume{
		letter:    letter,
		total:     totalClusters,
		bpc:       bytesPerCluster,
		fsType:    fsType,
		osMajor:   6, // Vista-equivalent by default: new enough for MFT moves.
		osMinor:   0,
		allocated: make([]bool, totalClusters),
		locked:    make(map[string]bool),
	}
}

// SetOsVersion overrides the (major, minor) GetOsVersion reports, for tests
// exercising the NT4/W2K whole-file-move carve-out (§4.8 step 2b).
func (v *Volume) SetOsVersion(major, minor int) {
	v.osMajor, v.osMinor = major, minor
}

// SetNtfsData configures the MFT geometry GetVolumeInformation reports.
func (v *Volume) SetNtfsData(d udefrag.NtfsVolumeData) {
	v.ntfs = d
}

// SetDirty marks the volume dirty, forcing ErrDirtyVolume on any
// non-Analysis job.
func (v *Volume) SetDirty(dirty bool) {
	v.dirty = dirty
}

// SetLabelFromRaw decodes a raw little-endian UTF-16 volume-label buffer
// (the on-disk form NTFS/FAT32/UDF store it in) and sets it as the label
// GetVolumeInformation reports.
func (v *Volume) SetLabelFromRaw(raw []byte, charCount int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.label = udefrag.DecodeUTF16Label(raw, charCount)
}

// SetLabel sets the volume label directly.
func (v *Volume) SetLabel(label string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.label = label
}

// Lock marks path as OS-locked: Open and IsFileLocked will both report it.
func (v *Volume) Lock(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.locked[path] = true
}

// AddFile registers a file occupying the given extents, marking each
// extent's clusters allocated in the bitmap.
func (v *Volume) AddFile(fi *udefrag.FileInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.files = append(v.files, fi)
	for _, b := range fi.Blockmap().Blocks() {
		if b.IsExcluded() {
			continue
		}
		v.markRange(b.Lcn, b.Length, true)
	}
}

func (v *Volume) markRange(lcn udefrag.Lcn, length udefrag.Length, used bool) {
	for i := uint64(0); i < uint64(length); i++ {
		idx := uint64(lcn) + i
		if idx < uint64(len(v.allocated)) {
			v.allocated[idx] = used
		}
	}
}

// encodeSuperblock packs this volume's static geometry with restruct;
// GetVolumeInformation unpacks the result again and reports the decoded
// values.
func (v *Volume) encodeSuperblock() ([]byte, error) {
	sb := superblock{
		TotalClusters:   v.total,
		BytesPerCluster: v.bpc,
		FsType:          uint8(v.fsType),
	}
	if v.dirty {
		sb.IsDirty = 1
	}
	return restruct.Pack(binary.LittleEndian, &sb)
}

func (v *Volume) decodeSuperblock(raw []byte) (superblock, error) {
	var sb superblock
	err := restruct.Unpack(raw, binary.LittleEndian, &sb)
	return sb, err
}

// GetVolumeInformation implements udefrag.PlatformShim.
func (v *Volume) GetVolumeInformation(letter string) (udefrag.VolumeInformation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	raw, err := v.encodeSuperblock()
	if err != nil {
		return udefrag.VolumeInformation{}, err
	}
	sb, err := v.decodeSuperblock(raw)
	if err != nil {
		return udefrag.VolumeInformation{}, err
	}

	fsName := v.fsType.String()

	return udefrag.VolumeInformation{
		TotalBytes:      sb.TotalClusters * uint64(sb.BytesPerCluster),
		FreeBytes:       v.freeClusters() * uint64(sb.BytesPerCluster),
		BytesPerCluster: sb.BytesPerCluster,
		TotalClusters:   sb.TotalClusters,
		FsName:          fsName,
		IsDirty:         sb.IsDirty != 0,
		Label:           v.label,
		NtfsData:        v.ntfs,
	}, nil
}

func (v *Volume) freeClusters() uint64 {
	n := uint64(0)
	for _, used := range v.allocated {
		if !used {
			n++
		}
	}
	return n
}

// GetFreeVolumeRegions implements udefrag.PlatformShim by coalescing the
// bitmap's runs of unallocated clusters.
func (v *Volume) GetFreeVolumeRegions(letter string, flags udefrag.ScanFlags) ([]udefrag.FreeRegion, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var regions []udefrag.FreeRegion
	i := uint64(0)
	for i < uint64(len(v.allocated)) {
		if v.allocated[i] {
			i++
			continue
		}
		start := i
		for i < uint64(len(v.allocated)) && !v.allocated[i] {
			i++
		}
		regions = append(regions, udefrag.FreeRegion{Lcn: udefrag.Lcn(start), Length: udefrag.Length(i - start)})
	}

	return regions, nil
}

// ScanDisk implements udefrag.PlatformShim by returning the registered
// file table, honoring the terminator between entries.
func (v *Volume) ScanDisk(letter string, flags udefrag.ScanFlags, progress udefrag.ScanProgressFunc, terminator udefrag.TerminatorFunc) ([]*udefrag.FileInfo, error) {
	v.mu.Lock()
	files := append([]*udefrag.FileInfo(nil), v.files...)
	v.mu.Unlock()

	for i, fi := range files {
		if terminator != nil && terminator() {
			return files[:i], nil
		}
		if progress != nil {
			progress(uint64(i + 1))
		}
	}

	return files, nil
}

type testHandle struct {
	fi *udefrag.FileInfo
}

// Open implements udefrag.PlatformShim.
func (v *Volume) Open(fi *udefrag.FileInfo, mode udefrag.OpenMode) (udefrag.FileHandle, error) {
	v.mu.Lock()
	locked := v.locked[fi.Path]
	v.mu.Unlock()

	if locked {
		return nil, fmt.Errorf("testvolume: %s is locked", fi.Path)
	}

	return &testHandle{fi: fi}, nil
}

// Close implements udefrag.PlatformShim.
func (v *Volume) Close(h udefrag.FileHandle) error {
	return nil
}

// DumpFile implements udefrag.PlatformShim by returning a clone of the
// file's current (already-updated) blockmap.
func (v *Volume) DumpFile(h udefrag.FileHandle) (*udefrag.Blockmap, error) {
	th := h.(*testHandle)
	return th.fi.Blockmap().Clone(), nil
}

// MoveFileClusters implements udefrag.PlatformShim: it relocates
// [vcn, vcn+length) of the handle's file to targetLcn in both the bitmap
// and the file's blockmap, failing if the target range isn't entirely
// free.
func (v *Volume) MoveFileClusters(h udefrag.FileHandle, vcn udefrag.Vcn, targetLcn udefrag.Lcn, length udefrag.Length) error {
	th := h.(*testHandle)

	v.mu.Lock()
	defer v.mu.Unlock()

	for i := uint64(0); i < uint64(length); i++ {
		idx := uint64(targetLcn) + i
		if idx >= uint64(len(v.allocated)) || v.allocated[idx] {
			return fmt.Errorf("testvolume: target range not free at lcn %d", idx)
		}
	}

	bm := th.fi.Blockmap()
	oldBlocks := bm.Blocks()
	rangeEnd := udefrag.Vcn(uint64(vcn) + uint64(length))
	for _, b := range oldBlocks {
		if b.IsExcluded() || !b.OverlapsVcn(vcn, length) {
			continue
		}

		segStart := b.Vcn
		if vcn > segStart {
			segStart = vcn
		}
		segEnd := b.VcnEnd()
		if rangeEnd < segEnd {
			segEnd = rangeEnd
		}
		if segEnd <= segStart {
			continue
		}

		offset := uint64(segStart) - uint64(b.Vcn)
		segLcn := udefrag.Lcn(uint64(b.Lcn) + offset)
		segLen := udefrag.Length(uint64(segEnd) - uint64(segStart))

		v.markRange(segLcn, segLen, false)
	}

	v.markRange(targetLcn, length, true)
	bm.SynthesizeFromInput(vcn, length, targetLcn)

	return nil
}

// IsFileLocked implements udefrag.PlatformShim.
func (v *Volume) IsFileLocked(fi *udefrag.FileInfo) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.locked[fi.Path], nil
}

// GetDriveType implements udefrag.PlatformShim; testvolume always reports a
// fixed disk.
func (v *Volume) GetDriveType(letter string) (string, error) {
	return "fixed", nil
}

// GetOsVersion implements udefrag.PlatformShim.
func (v *Volume) GetOsVersion() (major, minor int) {
	return v.osMajor, v.osMinor
}
