// Package pipeline orchestrates the NEST batch stages: circular cropping of
// raw acquisitions and robust intensity scoring of the crops into a sorted
// CSV dataset.
//
// The key responsibility is partial-failure isolation. A single corrupt file
// or unparseable filename never aborts a batch: the image is skipped, the
// skip is logged with its reason, and the run summary reports processed vs
// skipped counts. Only a total absence of processable images, or a failure
// to persist the output, fails the whole run.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	nestimaging "github.com/phisoart/NEST/internal/imaging"
	"github.com/phisoart/NEST/internal/metadata"
)

// progressEvery controls how often a progress line is logged during a batch.
const progressEvery = 50

// Config carries every path and knob a pipeline needs, so runs are
// deterministic and free of ambient working-directory state.
type Config struct {
	// InputDir holds the raw acquisition images.
	InputDir string

	// Pattern is the filename glob selecting images, e.g. "*.tif".
	Pattern string

	// CropDir receives circular crops under the same base filenames.
	CropDir string

	// OutputCSV is the exported dataset path.
	OutputCSV string

	// Workers is the number of images scored concurrently. Values below 1
	// are treated as 1, preserving the reference single-pass behavior.
	Workers int

	// Precision is the number of decimals for mean_intensity at export.
	Precision int
}

// Summary reports batch accounting.
type Summary struct {
	Processed int
	Skipped   int
}

// Pipeline runs the crop and analyze batch stages.
type Pipeline struct {
	cfg   Config
	cache *nestimaging.ImageCache
	log   *zap.Logger
}

// New builds a pipeline for the given configuration. Every log line of the
// run carries a fresh run_id so interleaved batches can be told apart.
func New(cfg Config, log *zap.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Pattern == "" {
		cfg.Pattern = "*.tif"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:   cfg,
		cache: nestimaging.NewImageCache(),
		log:   log.With(zap.String("run_id", uuid.NewString())),
	}
}

// InputFiles lists the raw images selected by the configured glob, sorted.
func (p *Pipeline) InputFiles() ([]string, error) {
	return p.glob(p.cfg.InputDir)
}

// CropFiles lists the cropped images selected by the configured glob, sorted.
func (p *Pipeline) CropFiles() ([]string, error) {
	return p.glob(p.cfg.CropDir)
}

func (p *Pipeline) glob(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, p.cfg.Pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", p.cfg.Pattern, err)
	}
	return files, nil
}

// CropOne loads a single image, extracts its circular region, and writes the
// result to dst. The output format follows the dst extension and 16-bit
// grayscale sources stay 16-bit.
func (p *Pipeline) CropOne(path, dst string) error {
	img, err := p.cache.Load(path)
	p.cache.Evict(path)
	if err != nil {
		return err
	}

	cropped, err := nestimaging.CircleCrop(img)
	if err != nil {
		return err
	}

	if err := imaging.Save(cropped, dst); err != nil {
		return fmt.Errorf("failed to save crop: %w", err)
	}
	return nil
}

// Crop runs the circular crop stage over every input image, writing crops to
// the configured crop directory under the same base filename. Failures are
// logged and counted, never fatal for the batch.
func (p *Pipeline) Crop() (Summary, error) {
	files, err := p.InputFiles()
	if err != nil {
		return Summary{}, err
	}
	if len(files) == 0 {
		return Summary{}, fmt.Errorf("no images matching %s in %s", p.cfg.Pattern, p.cfg.InputDir)
	}

	if err := os.MkdirAll(p.cfg.CropDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("failed to create crop directory: %w", err)
	}

	p.log.Info("cropping batch", zap.Int("images", len(files)), zap.String("output", p.cfg.CropDir))

	var sum Summary
	for i, path := range files {
		name := filepath.Base(path)
		if err := p.CropOne(path, filepath.Join(p.cfg.CropDir, name)); err != nil {
			sum.Skipped++
			p.log.Warn("crop failed",
				zap.String("file", name),
				zap.String("reason", cropReason(err)),
				zap.Error(err))
			continue
		}
		sum.Processed++
		if (i+1)%progressEvery == 0 {
			p.log.Info("crop progress", zap.Int("done", i+1), zap.Int("total", len(files)))
		}
	}

	if sum.Processed == 0 {
		return sum, errors.New("no image could be cropped")
	}
	p.log.Info("crop complete", zap.Int("processed", sum.Processed), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

// Analyze scores every cropped image, joins the scores with filename
// metadata, sorts the dataset, and exports it to the configured CSV path.
func (p *Pipeline) Analyze() (Dataset, Summary, error) {
	files, err := p.CropFiles()
	if err != nil {
		return nil, Summary{}, err
	}
	if len(files) == 0 {
		return nil, Summary{}, fmt.Errorf("no images matching %s in %s", p.cfg.Pattern, p.cfg.CropDir)
	}

	p.log.Info("analyzing batch", zap.Int("images", len(files)), zap.Int("workers", p.cfg.Workers))

	ds, sum := p.score(files)
	if sum.Processed == 0 {
		return nil, sum, errors.New("no image could be analyzed")
	}

	ds.Sort()
	if err := ds.WriteCSV(p.cfg.OutputCSV, p.cfg.Precision); err != nil {
		return nil, sum, err
	}

	p.log.Info("analysis complete",
		zap.Int("processed", sum.Processed),
		zap.Int("skipped", sum.Skipped),
		zap.String("output", p.cfg.OutputCSV))
	return ds, sum, nil
}

// score fans the files out over the configured worker count. Workers share
// no mutable state beyond the collector; the dataset is assembled under a
// mutex and sorted only after the WaitGroup barrier, so the output is
// independent of processing order.
func (p *Pipeline) score(files []string) (Dataset, Summary) {
	var (
		mu   sync.Mutex
		ds   = make(Dataset, 0, len(files))
		sum  Summary
		done int
	)

	collect := func(rec SampleRecord, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sum.Skipped++
		} else {
			sum.Processed++
			ds = append(ds, rec)
		}
		done++
		if done%progressEvery == 0 {
			p.log.Info("analysis progress", zap.Int("done", done), zap.Int("total", len(files)))
		}
	}

	if p.cfg.Workers == 1 {
		for _, path := range files {
			rec, _, err := p.ScoreOne(path)
			collect(rec, err)
		}
		return ds, sum
	}

	paths := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				rec, _, err := p.ScoreOne(path)
				collect(rec, err)
			}
		}()
	}
	for _, path := range files {
		paths <- path
	}
	close(paths)
	wg.Wait()

	return ds, sum
}

// ScoreOne processes a single image end to end: parse the filename, decode,
// compute the robust mean, and build the record. The parsed sample is
// returned alongside the record for callers that report metadata beyond the
// exported columns. Each failure mode is logged with the identifier and
// reason so data completeness can be audited.
func (p *Pipeline) ScoreOne(path string) (SampleRecord, metadata.Sample, error) {
	name := filepath.Base(path)
	identifier := strings.TrimSuffix(name, filepath.Ext(name))

	sample, err := metadata.Parse(identifier)
	if err != nil {
		p.log.Warn("skipping image",
			zap.String("file", name),
			zap.String("reason", "unrecognized filename"),
			zap.Error(err))
		return SampleRecord{}, metadata.Sample{}, err
	}

	img, err := p.cache.Load(path)
	p.cache.Evict(path)
	if err != nil {
		p.log.Warn("skipping image",
			zap.String("file", name),
			zap.String("reason", "decode failure"),
			zap.Error(err))
		return SampleRecord{}, sample, err
	}

	mean, err := nestimaging.RobustMean(img)
	if err != nil {
		p.log.Warn("skipping image",
			zap.String("file", name),
			zap.String("reason", "no valid pixels"),
			zap.Error(err))
		return SampleRecord{}, sample, err
	}

	return SampleRecord{
		Filename:   name,
		TimeLabel:  sample.Label(),
		SampleType: sample.Type,
		Dose:       sample.Dose,
		Replicate:  sample.Replicate,
		Intensity:  mean,
	}, sample, nil
}

// SmokeInfo describes a single-image dry run shown before batch confirmation.
type SmokeInfo struct {
	File      string
	Sample    metadata.Sample
	TimeLabel string
	Intensity float64
	Info      *nestimaging.ImageInfo
}

// Smoke scores the first image of the crop directory, preferring a first
// time point image when one exists, and returns what the batch would record
// for it.
func (p *Pipeline) Smoke() (*SmokeInfo, error) {
	path, err := p.smokeCandidate(p.cfg.CropDir)
	if err != nil {
		return nil, err
	}

	info, err := nestimaging.LoadImageInfo(p.cache, path)
	if err != nil {
		return nil, err
	}

	rec, sample, err := p.ScoreOne(path)
	if err != nil {
		return nil, err
	}

	return &SmokeInfo{
		File:      filepath.Base(path),
		Sample:    sample,
		TimeLabel: rec.TimeLabel,
		Intensity: rec.Intensity,
		Info:      info,
	}, nil
}

// CropSmoke crops the first input image to "test_<name>" in the crop
// directory and reports the before/after dimensions.
func (p *Pipeline) CropSmoke() (orig, cropped *nestimaging.ImageInfo, out string, err error) {
	path, err := p.smokeCandidate(p.cfg.InputDir)
	if err != nil {
		return nil, nil, "", err
	}

	if err := os.MkdirAll(p.cfg.CropDir, 0o755); err != nil {
		return nil, nil, "", fmt.Errorf("failed to create crop directory: %w", err)
	}

	orig, err = nestimaging.LoadImageInfo(p.cache, path)
	if err != nil {
		return nil, nil, "", err
	}

	out = filepath.Join(p.cfg.CropDir, "test_"+filepath.Base(path))
	if err := p.CropOne(path, out); err != nil {
		return nil, nil, "", err
	}

	cropped, err = nestimaging.LoadImageInfo(p.cache, out)
	if err != nil {
		return nil, nil, "", err
	}
	return orig, cropped, out, nil
}

// smokeCandidate prefers a T01_* image so the dry run lands on the first
// time point, falling back to the first match of the configured pattern.
func (p *Pipeline) smokeCandidate(dir string) (string, error) {
	if files, err := filepath.Glob(filepath.Join(dir, "T01_*")); err == nil && len(files) > 0 {
		return files[0], nil
	}
	files, err := p.glob(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no images matching %s in %s", p.cfg.Pattern, dir)
	}
	return files[0], nil
}

// cropReason classifies a crop failure for the skip diagnostic.
func cropReason(err error) string {
	switch {
	case errors.Is(err, nestimaging.ErrEmptyImage):
		return "empty image"
	case errors.Is(err, image.ErrFormat):
		return "decode failure"
	default:
		return "processing failure"
	}
}
