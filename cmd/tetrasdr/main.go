// Command tetrasdr wires a configuration file to a tuned pipeline: it
// loads settings, constructs the demodulator(s), cipher, voice codec,
// audio sinks, and (in trunking mode) the channel manager, then runs the
// orchestrator until interrupted.
//
// The CLI flag surface, banner, and operator control panel are treated
// as external collaborators (see the configuration file format) and are
// not reimplemented here beyond the flags needed to locate that file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xylo04/goHamlib"

	"github.com/letstrythisshit/tetrasdr/internal/audioring"
	"github.com/letstrythisshit/tetrasdr/internal/config"
	"github.com/letstrythisshit/tetrasdr/internal/demod"
	"github.com/letstrythisshit/tetrasdr/internal/pipeline"
	"github.com/letstrythisshit/tetrasdr/internal/tea1"
	"github.com/letstrythisshit/tetrasdr/internal/telemetry"
	"github.com/letstrythisshit/tetrasdr/internal/trunk"
	"github.com/letstrythisshit/tetrasdr/internal/tuner"
	"github.com/letstrythisshit/tetrasdr/internal/voice"
)

const (
	ringCapacity      = 4 * voice.FrameSize * 8 // spec.md §4.G: 4x the codec buffer size
	audioChunkSamples = 512
	iqBufferSize      = 256 * 1024
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "tetrasdr.yaml", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	logLevel := log.InfoLevel
	if *verbose {
		logLevel = log.DebugLevel
	}
	logger := telemetry.New(os.Stderr, logLevel)

	settings, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("configuration error: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	t, closeTuner, err := openTuner(settings, logger)
	if err != nil {
		logger.Errorf("open tuner: %v", err)
		return 1
	}
	if closeTuner != nil {
		defer closeTuner()
	}

	params := demod.DefaultParams()
	if err := settings.ApplyDetectionParams(params); err != nil {
		logger.Errorf("invalid squelch threshold: %v", err)
		return 1
	}
	status := &demod.Status{}
	voiceDemod := demod.New(params, status, settings.SampleRateHz, demod.SymbolRate)

	var controlDemod *demod.Demodulator
	var manager *trunk.Manager
	if settings.Trunking {
		controlDemod = demod.New(demod.DefaultParams(), &demod.Status{}, settings.SampleRateHz, demod.SymbolRate)
		cfg := trunk.Config{
			ControlFreq:       settings.TrunkingConfig.ControlFreqHz,
			PriorityThreshold: settings.TrunkingConfig.PriorityThreshold,
			EmergencyOverride: settings.TrunkingConfig.EmergencyOverride,
			RecordAll:         settings.TrunkingConfig.RecordAll,
			AutoFollow:        true,
		}
		manager = trunk.NewManager(cfg, t, logger)
		for _, id := range settings.TrunkingConfig.TalkGroupIDs {
			if _, err := manager.AddTalkGroup(id, fmt.Sprintf("tg-%d", id), true, 5); err != nil {
				logger.Warnf("talk group table full, dropping group %d", id)
			}
		}
	}

	var key [tea1.KeySize]byte
	var cipherCtx *tea1.Context
	var codec *voice.Decoder
	if settings.VulnerabilityMode {
		cipherCtx = tea1.NewContext(key, true)
		codec = voice.NewDecoder()
	}

	pcfg := pipeline.Config{
		VulnerabilityMode: settings.VulnerabilityMode,
		TrunkingEnabled:   settings.Trunking,
		ControlFreq:       settings.TrunkingConfig.ControlFreqHz,
	}
	p := pipeline.New(pcfg, voiceDemod, controlDemod, cipherCtx, codec, manager, t)

	ring := audioring.NewRing(ringCapacity)
	p.AddSink(pipeline.RingSink(ring))

	var realtimeSink *audioring.RealtimeSink
	if settings.RealTimeAudio {
		sink, err := audioring.NewRealtimeSink(ring, 8000, audioChunkSamples)
		if err != nil {
			logger.Errorf("open realtime audio sink: %v", err)
			return 1
		}
		if err := sink.Start(); err != nil {
			logger.Errorf("start realtime audio sink: %v", err)
			return 1
		}
		defer sink.Close()
		realtimeSink = sink
	}
	go runAudioConsumer(ctx, ring, realtimeSink)

	if settings.OutputFile != "" {
		f, err := os.Create(settings.OutputFile)
		if err != nil {
			logger.Errorf("cannot open output file: %v", err)
			return 1
		}
		defer f.Close()
		sink, err := audioring.NewWAVSink(f, 8000, 1)
		if err != nil {
			logger.Errorf("cannot initialise WAV sink: %v", err)
			return 1
		}
		defer sink.Close()
		p.AddSink(sink)
	}

	if settings.SquelchGPIOChip != "" {
		line, err := telemetry.OpenSquelchLine(settings.SquelchGPIOChip, settings.SquelchGPIOLine)
		if err != nil {
			logger.Errorf("open squelch gpio line: %v", err)
			return 1
		}
		defer line.Close()
		go runSquelchMonitor(ctx, status, line)
	}

	if manager != nil {
		manager.Start()
		defer manager.Stop()
	}

	if settings.StatsAdvertise {
		advertiser, err := telemetry.StartStatsAdvertiser(ctx, "tetrasdr", settings.StatsPort, statsTXT(settings, manager))
		if err != nil {
			logger.Errorf("start mdns advertiser: %v", err)
			return 1
		}
		defer advertiser.Stop()
	}

	source, ptySlave, err := openSource(settings)
	if err != nil {
		logger.Errorf("open i/q source: %v", err)
		return 1
	}
	if ptySlave != "" {
		logger.Infof("simulated pty source ready, slave=%s", ptySlave)
	}
	logger.Infof("tetrasdr running: center=%d Hz trunking=%v vulnerability_mode=%v", settings.CenterFreqHz, settings.Trunking, settings.VulnerabilityMode)

	if err := p.Run(ctx, source); err != nil {
		logger.Errorf("pipeline stopped with error: %v", err)
		return 1
	}

	logger.Infof("shutdown complete")
	return 0
}

// openTuner selects the trunk.Tuner backend named by settings.TunerBackend,
// resolving a udev serial to a device index first when one is configured.
// The returned close func is nil for the simulated backend.
func openTuner(settings *config.AppSettings, logger *telemetry.Logger) (trunk.Tuner, func() error, error) {
	if settings.TunerBackend != "hamlib" {
		return tuner.NewSimulated(settings.CenterFreqHz), nil, nil
	}

	devicePath := settings.HamlibDevicePath
	if settings.DeviceSerial != "" {
		idx, err := tuner.ResolveDeviceIndex(settings.DeviceSerial)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve device serial %q: %w", settings.DeviceSerial, err)
		}
		logger.Infof("resolved device serial %q to index %d", settings.DeviceSerial, idx)
		if devicePath == "" {
			devicePath = fmt.Sprintf("/dev/ttyUSB%d", idx)
		}
	}

	h, err := tuner.OpenHamlib(goHamlib.RigModel(settings.HamlibModel), devicePath, settings.CenterFreqHz)
	if err != nil {
		return nil, nil, err
	}
	return h, h.Close, nil
}

// openSource selects the pipeline.ByteSource named by settings.IQSource.
// The second return value is the pty slave path when IQSource is "pty",
// empty otherwise.
func openSource(settings *config.AppSettings) (pipeline.ByteSource, string, error) {
	switch settings.IQSource {
	case "pty":
		src, slaveName, err := pipeline.OpenSimulatedPTY(iqBufferSize)
		if err != nil {
			return nil, "", err
		}
		return src, slaveName, nil
	case "serial":
		src, err := pipeline.OpenSerialSource(settings.SerialDevicePath, settings.SerialBaud, iqBufferSize)
		return src, "", err
	default:
		return pipeline.NewSimulatedSource(iqBufferSize, 50*time.Millisecond), "", nil
	}
}

// runAudioConsumer is the audio-ring consumer thread of spec.md §5: it
// drains ring on a fixed cadence for as long as ctx is live. When a
// realtime sink is configured each drained chunk is played back through
// it; otherwise the ring is merely kept from overflowing.
func runAudioConsumer(ctx context.Context, ring *audioring.Ring, sink *audioring.RealtimeSink) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	discard := make([]int16, audioChunkSamples)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sink != nil {
				if err := sink.Pump(); err != nil {
					return
				}
				continue
			}
			if ring.Stats().Occupied >= len(discard) {
				ring.Read(discard)
			}
		}
	}
}

// runSquelchMonitor mirrors the demodulator's burst-detected flag onto a
// GPIO line once per tick.
func runSquelchMonitor(ctx context.Context, status *demod.Status, line *telemetry.SquelchLine) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := line.SetDetected(status.Snapshot().BurstDetected); err != nil {
				return
			}
		}
	}
}

// statsTXT builds the mDNS TXT record set advertised for this instance.
func statsTXT(settings *config.AppSettings, manager *trunk.Manager) map[string]string {
	txt := map[string]string{
		"trunking": fmt.Sprintf("%v", settings.Trunking),
	}
	if manager != nil {
		stats := manager.Stats()
		txt["active_channels"] = fmt.Sprintf("%d", manager.ActiveChannelCount())
		txt["total_calls"] = fmt.Sprintf("%d", stats.TotalCalls)
		txt["encrypted_calls"] = fmt.Sprintf("%d", stats.EncryptedCalls)
	}
	return txt
}
