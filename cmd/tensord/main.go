// tensord publishes conformance tensors over Arrow Flight so a peer host
// can compare device output against its own reference without sharing a
// filesystem.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/flightio"
	"github.com/23skdu/longbow-bodkin/internal/logger"
	"github.com/23skdu/longbow-bodkin/internal/mem"
	"github.com/23skdu/longbow-bodkin/internal/ref"
	"github.com/23skdu/longbow-bodkin/internal/tile"
)

var (
	addr        = flag.String("addr", "localhost:3000", "Flight listen address")
	metricsAddr = flag.String("metrics", ":9090", "Address to serve Prometheus metrics")
	batch       = flag.Int("batch", 9, "Scenario batch size")
	height      = flag.Int("height", 6144, "Scenario height")
	width       = flag.Int("width", 384, "Scenario width")
	seed        = flag.Int64("seed", 123, "Scenario RNG seed")
	logLevel    = flag.String("log-level", "info", "Log level")
	logFormat   = flag.String("log-format", "console", "Log format: console or json")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, *logFormat)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Log.Error("metrics server error", "error", err)
		}
	}()

	reg := flightio.NewRegistry()
	if err := publishScenario(reg); err != nil {
		logger.Log.Error("failed to build scenario tensors", "error", err)
		os.Exit(1)
	}

	srv := flightio.NewServer(reg)
	if err := srv.Start(*addr); err != nil {
		logger.Log.Error("failed to start flight server", "error", err)
		os.Exit(1)
	}
	defer srv.Shutdown()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Log.Info("shutting down")
}

// publishScenario runs the attention softmax scenario on the device and
// registers input, device output and host reference for peers to fetch.
func publishScenario(reg *flightio.Registry) error {
	shape := tile.Shape{N: *batch, C: 1, H: *height, W: *width}
	sc := ref.AttentionScenario(shape, -4.2, *seed)

	ctx, err := device.Open(0, device.Options{})
	if err != nil {
		return err
	}
	defer ctx.Close()

	x, err := ctx.NewTensorFromHost("in0", sc.Input, shape, tile.BFloat16, tile.Tiled, mem.Bulk, mem.Interleaved)
	if err != nil {
		return err
	}
	defer x.Free()
	scale, err := ctx.NewTensorFromHost("scale",
		[]float32{sc.Scale}, tile.Shape{N: 1, C: 1, H: 1, W: 1},
		tile.Float32, tile.RowMajor, mem.Bulk, mem.Contiguous)
	if err != nil {
		return err
	}
	defer scale.Free()
	mask, err := ctx.NewTensorFromHost("mask",
		sc.Mask, sc.MaskShape, tile.Float32, tile.RowMajor, mem.Bulk, mem.Contiguous)
	if err != nil {
		return err
	}
	defer mask.Free()

	if _, err := ctx.ScaleMaskSoftmaxInPlace(x, scale, mask); err != nil {
		return err
	}
	got, err := x.ToHost()
	if err != nil {
		return err
	}

	for name, e := range map[string]flightio.Entry{
		"attention/input":     {Shape: shape, DType: tile.Float32, Data: sc.Input},
		"attention/output":    {Shape: shape, DType: tile.BFloat16, Data: got},
		"attention/reference": {Shape: shape, DType: tile.Float32, Data: sc.Expected()},
	} {
		if err := reg.Put(name, e); err != nil {
			return err
		}
	}
	logger.Log.Info("published scenario tensors", "shape", shape.String(), "count", 3)
	return nil
}
