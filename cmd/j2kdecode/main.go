package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/imgcodec/accel"
	"github.com/xaionaro-go/imgcodec/accel/host"
	"github.com/xaionaro-go/imgcodec/accel/streampool"
	"github.com/xaionaro-go/imgcodec/codec"
	"github.com/xaionaro-go/imgcodec/codec/jpeg2k"
	"github.com/xaionaro-go/imgcodec/logger"
	"github.com/xaionaro-go/imgcodec/threadpool"
	"github.com/xaionaro-go/imgcodec/types"
	"github.com/xaionaro-go/observability"
	"golang.org/x/sync/errgroup"
)

// defaultDeviceMemoryPadding is large enough for a 2048x2048 RGBA image;
// larger images make the padding grow, see scratchPadding.
const defaultDeviceMemoryPadding = types.ByteSize(16 << 20)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <file.jp2|file.j2k> [...]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	cfg := jpeg2k.DefaultConfig()
	cfg.DeviceMemoryPadding = defaultDeviceMemoryPadding
	configPath := pflag.String("config", "", "path to a YAML config; the flags below override it")
	pflag.IntVar(&cfg.ThreadCount, "threads", cfg.ThreadCount, "amount of worker threads")
	pflag.Var(&cfg.DeviceType, "device-type", "accelerator type")
	deviceID := pflag.Int("device-id", int(cfg.DeviceID), "accelerator ordinal")
	pflag.Var(&cfg.DeviceMemoryPadding, "device-memory-padding", "scratch device memory per thread")
	pflag.Var(&cfg.HostMemoryPadding, "host-memory-padding", "pinned staging memory per thread")
	var decoderParams types.ParamItems
	pflag.Var(&decoderParams, "param", "a decoder parameter as key=value (e.g. nvjpeg2k_device_memory_padding=1MiB); may be repeated")
	formatString := pflag.String("format", "any", "output format: any, rgb, bgr, gray")
	outputDir := pflag.String("output-dir", ".", "directory to write the decoded PNG files to")
	metricsAddr := pflag.String("metrics-listen-addr", "", "an address to serve Prometheus metrics at")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	logger.SetDefault(func() logger.Logger {
		return l
	})
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*metricsAddr, mux)) })
	}

	if *configPath != "" {
		cfg = readConfig(ctx, *configPath, cfg)
	}
	if pflag.CommandLine.Changed("device-id") || *configPath == "" {
		cfg.DeviceID = types.DeviceID(*deviceID)
	}
	format, err := types.ImageFormatFromString(*formatString)
	if err != nil {
		l.Fatal(err)
	}
	if cfg.DeviceType != types.DeviceTypeHost {
		l.Fatalf("device type %s is not supported by this build", cfg.DeviceType)
	}

	dev, err := host.NewDevice(ctx, cfg.DeviceID, host.Config{})
	if err != nil {
		l.Fatal(err)
	}
	defer dev.Close(ctx)
	defer streampool.Default().Purge(ctx, dev)

	tp, err := threadpool.New(ctx, cfg.ThreadCount)
	if err != nil {
		l.Fatal(err)
	}
	defer tp.Close(ctx)

	registry := codec.NewRegistry(tp)
	defer registry.Close(ctx)
	registry.Register(ctx, jpeg2k.NewFactory(
		accel.Devices{cfg.DeviceID: dev},
		jpeg2k.OptionConfig{Config: cfg},
		jpeg2k.OptionMetricsRegisterer{Registerer: prometheus.DefaultRegisterer},
	))

	paths := pflag.Args()
	ins, err := loadFiles(ctx, paths, cfg.ThreadCount)
	if err != nil {
		l.Fatal(err)
	}

	params := codec.DecodeParams{DType: types.DataTypeUInt8, Format: format}
	outs, buffers, infos := allocateOutputs(ctx, dev.DeviceAllocator(), ins, params)
	defer func() {
		for _, buf := range buffers {
			if buf != nil {
				_ = buf.Close(ctx)
			}
		}
	}()

	decoder, err := registry.GetDecoder(ctx, cfg.DeviceID, ins[0], params, types.ROI{})
	if err != nil {
		l.Fatal(err)
	}
	if padding := scratchPadding(uint64(cfg.DeviceMemoryPadding), infos); padding > uint64(cfg.DeviceMemoryPadding) {
		logger.Infof(ctx, "raising the device memory padding to %s to fit the largest image", types.ByteSize(padding))
		if err := decoder.SetParam(ctx, jpeg2k.ParamDeviceMemoryPadding, padding); err != nil {
			l.Fatal(err)
		}
	}
	if err := codec.SetParams(ctx, decoder, decoderParams); err != nil {
		l.Fatal(err)
	}

	startedAt := time.Now()
	results, err := codec.NewBatchParallel(decoder, tp).DecodeBatch(ctx, nil, outs, ins, params, nil)
	if err != nil {
		l.Fatal(err)
	}
	l.Infof("decoded %d images in %v", len(ins), time.Since(startedAt))

	failed := 0
	for idx, res := range results {
		if buffers[idx] == nil {
			failed++
			continue
		}
		if !res.Success {
			l.Errorf("unable to decode '%s': %v", paths[idx], res.Err)
			failed++
			continue
		}
		outPath := filepath.Join(*outputDir, strings.TrimSuffix(filepath.Base(paths[idx]), filepath.Ext(paths[idx]))+".png")
		if err := imgio.Save(outPath, sampleToImage(outs[idx], format), imgio.PNGEncoder()); err != nil {
			l.Errorf("unable to save '%s': %v", outPath, err)
			failed++
			continue
		}
		fmt.Println(outPath)
	}
	if failed > 0 {
		belt.Flush(ctx)
		os.Exit(2)
	}
}

func readConfig(ctx context.Context, path string, flagsCfg jpeg2k.Config) jpeg2k.Config {
	f, err := os.Open(path)
	if err != nil {
		logger.Panicf(ctx, "unable to open the config: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg2k.ReadConfig(f)
	if err != nil {
		logger.Panicf(ctx, "unable to read '%s': %v", path, err)
	}
	for flagName, apply := range map[string]func(){
		"threads":               func() { cfg.ThreadCount = flagsCfg.ThreadCount },
		"device-type":           func() { cfg.DeviceType = flagsCfg.DeviceType },
		"device-memory-padding": func() { cfg.DeviceMemoryPadding = flagsCfg.DeviceMemoryPadding },
		"host-memory-padding":   func() { cfg.HostMemoryPadding = flagsCfg.HostMemoryPadding },
	} {
		if pflag.CommandLine.Changed(flagName) {
			apply()
		}
	}
	return cfg
}

func loadFiles(
	ctx context.Context,
	paths []string,
	concurrency int,
) ([]*codec.ImageSource, error) {
	ins := make([]*codec.ImageSource, len(paths))
	var errg errgroup.Group
	errg.SetLimit(concurrency)
	for idx, path := range paths {
		errg.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("unable to read '%s': %w", path, err)
			}
			logger.Debugf(ctx, "read %d bytes from '%s'", len(data), path)
			ins[idx] = codec.ImageSourceFromHostMemory(data, path)
			return nil
		})
	}
	return ins, errg.Wait()
}

// scratchPadding returns the device memory padding that fits the native
// output of every image, but not less than configured.
func scratchPadding(configured uint64, infos []codec.ImageInfo) uint64 {
	result := configured
	for _, info := range infos {
		if size := uint64(info.Shape.Volume()); size > result {
			result = size
		}
	}
	return result
}

// allocateOutputs returns a nil buffer for the inputs whose header cannot
// be read; those are still passed to the decoder to get a diagnostic.
func allocateOutputs(
	ctx context.Context,
	allocator accel.Allocator,
	ins []*codec.ImageSource,
	params codec.DecodeParams,
) ([]codec.SampleView, []accel.Buffer, []codec.ImageInfo) {
	var parser jpeg2k.Parser
	outs := make([]codec.SampleView, len(ins))
	buffers := make([]accel.Buffer, len(ins))
	var infos []codec.ImageInfo
	for idx, in := range ins {
		info, err := parser.GetInfo(ctx, in)
		if err != nil {
			logger.Errorf(ctx, "unable to read the header of %v: %v", in, err)
			continue
		}
		infos = append(infos, info)
		shape := codec.OutputShape(info, params)
		buf, err := allocator.Allocate(ctx, uint64(shape.Volume())*uint64(params.DType.Size()))
		if err != nil {
			logger.Errorf(ctx, "unable to allocate the output for %v: %v", in, err)
			continue
		}
		outs[idx], err = codec.NewSampleView(buf, shape, params.DType)
		if err != nil {
			logger.Errorf(ctx, "unable to create the output view for %v: %v", in, err)
			_ = buf.Close(ctx)
			continue
		}
		buffers[idx] = buf
	}
	return outs, buffers, infos
}
