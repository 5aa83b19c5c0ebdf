package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dsoprea/go-logging"
	"github.com/jessevdk/go-flags"

	udefrag "github.com/udefrag/core"
	"github.com/udefrag/core/internal/dbglog"
	"github.com/udefrag/core/internal/testvolume"
)

// rootParameters mirrors the teacher's cmd/exfat_*/main.go shape: one flat
// struct of flags shared by every subcommand, parsed by go-flags.
type rootParameters struct {
	Volume      string `short:"v" long:"volume" description:"Volume letter/identifier" default:"C"`
	TomlConfig  string `short:"c" long:"config" description:"Path to an optional udefrag.toml defaults file"`
	ReportRoot  string `short:"o" long:"report-dir" description:"Directory to write report artifacts into" default:"."`
	Verbose     bool   `long:"verbose" description:"Raise log verbosity to DETAILED"`

	Analyze       analyzeCommand       `command:"analyze" description:"Analyze a volume without moving any data"`
	Defragment    defragmentCommand    `command:"defragment" description:"Defragment fragmented files"`
	Optimize      optimizeCommand      `command:"optimize" description:"Full optimization pass"`
	QuickOptimize quickOptimizeCommand `command:"quick-optimize" description:"Optimization pass without full evacuation"`
	MftOptimize   mftOptimizeCommand   `command:"mft-optimize" description:"Compact the MFT only"`
}

type analyzeCommand struct{}
type defragmentCommand struct {
	Repeat bool `long:"repeat" description:"Repeat passes until no cluster moves"`
}
type optimizeCommand struct{}
type quickOptimizeCommand struct{}
type mftOptimizeCommand struct{}

var rootArguments = new(rootParameters)

func main() {
	defer func() {
		if state := recover(); state != nil {
			err := log.Wrap(state.(error))
			log.PrintError(err)
			os.Exit(-1)
		}
	}()

	p := flags.NewParser(rootArguments, flags.Default)

	_, err := p.Parse()
	if err != nil {
		os.Exit(1)
	}

	if rootArguments.Verbose {
		udefrag.SetLogLevel(dbglog.Detailed)
	}

	opts, err := udefrag.LoadTomlDefaults(rootArguments.TomlConfig)
	log.PanicIf(err)
	opts = udefrag.LoadOptionsFromEnv(opts)
	if opts.DebugLevel > dbglog.Normal {
		udefrag.SetLogLevel(opts.DebugLevel)
	}

	kind, err := commandJobKind(p.Active.Name)
	log.PanicIf(err)

	// No production PlatformShim backend ships in this build — wiring real
	// NTFS/FAT ioctls requires host-specific syscalls outside this
	// module's scope (§6.1 documents the contract; internal/testvolume is
	// the reference implementation used by tests and this demo CLI path).
	platform := demoVolume()

	jp := udefrag.NewJobParams(rootArguments.Volume, kind, opts, platform, udefrag.NullObserver{})
	defer jp.Release()

	switch kind {
	case udefrag.JobAnalysis:
		err = jp.Analyze()
	case udefrag.JobDefragmentation:
		err = jp.Defragment(rootArguments.Defragment.Repeat)
	case udefrag.JobFullOptimization:
		err = jp.Optimize(true)
	case udefrag.JobQuickOptimization:
		err = jp.Optimize(false)
	case udefrag.JobMftOptimization:
		if err = jp.Analyze(); err == nil {
			err = jp.OptimizeMftHelper()
		}
	}
	log.PanicIf(err)

	err = jp.EmitReports(rootArguments.ReportRoot)
	log.PanicIf(err)

	fmt.Printf("%s: %s finished\n", rootArguments.Volume, kind)
}

func commandJobKind(name string) (udefrag.JobKind, error) {
	switch name {
	case "analyze":
		return udefrag.JobAnalysis, nil
	case "defragment":
		return udefrag.JobDefragmentation, nil
	case "optimize":
		return udefrag.JobFullOptimization, nil
	case "quick-optimize":
		return udefrag.JobQuickOptimization, nil
	case "mft-optimize":
		return udefrag.JobMftOptimization, nil
	default:
		return 0, fmt.Errorf("unknown subcommand %q", name)
	}
}

// demoVolume builds a small synthetic, already-fragmented NTFS volume so
// every subcommand has something to act on without a real disk attached.
func demoVolume() *testvolume.Volume {
	const totalClusters = 4096
	const bytesPerCluster = 4096

	v := testvolume.New(rootArguments.Volume, totalClusters, bytesPerCluster, udefrag.FsNtfs)
	v.SetNtfsData(udefrag.NtfsVolumeData{
		MftStartLcn:             0,
		MftValidDataLength:      64 * bytesPerCluster,
		MftZoneStart:            0,
		MftZoneEnd:              256,
		BytesPerFileRecordSegment: 1024,
		BytesPerCluster:           bytesPerCluster,
	})
	// raw little-endian UTF-16 for "DEMO", as GetVolumeInformation's wire
	// format would hand it to us.
	v.SetLabelFromRaw([]byte{'D', 0, 'E', 0, 'M', 0, 'O', 0}, 4)

	mft := udefrag.NewFileInfo(`\$Mft`, "$Mft", 0)
	mft.SetBlockmap(udefrag.NewBlockmap([]udefrag.Block{{Vcn: 0, Lcn: 0, Length: 64}}))
	v.AddFile(mft)

	fragmented := udefrag.NewFileInfo(`\data\fragmented.bin`, "fragmented.bin", 1)
	fragmented.SetBlockmap(udefrag.NewBlockmap([]udefrag.Block{
		{Vcn: 0, Lcn: 300, Length: 4},
		{Vcn: 4, Lcn: 320, Length: 4},
		{Vcn: 8, Lcn: 400, Length: 4},
	}))
	fragmented.LastModified = time.Now()
	v.AddFile(fragmented)

	return v
}
