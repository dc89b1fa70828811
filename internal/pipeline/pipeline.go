// Package pipeline runs the branch clustering end to end: load, validate,
// preprocess, split, project, cluster and plot.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/filialcluster/internal/cluster"
	"github.com/KaramelBytes/filialcluster/internal/config"
	"github.com/KaramelBytes/filialcluster/internal/plot"
	"github.com/KaramelBytes/filialcluster/internal/preprocess"
	"github.com/KaramelBytes/filialcluster/internal/reduce"
	"github.com/KaramelBytes/filialcluster/internal/schema"
	"github.com/KaramelBytes/filialcluster/internal/storage"
)

// UMAPTitle is the title of the projection image.
const UMAPTitle = "UMAP reduction plot"

// DBSCANTitle returns the title of the cluster image.
func DBSCANTitle(eps float64, minSamples int) string {
	return fmt.Sprintf("DBSCAN using the umap data with params epsilon: %v and min_samples: %d", eps, minSamples)
}

// Report summarizes a finished run.
type Report struct {
	RunID     string            `json:"run_id"`
	Rows      int               `json:"rows"`
	Columns   int               `json:"columns"`
	Missing   int               `json:"rows_with_missing"`
	Filled    []preprocess.Fill `json:"filled"`
	Features  []string          `json:"features"`
	TrainRows int               `json:"train_rows"`
	TestRows  int               `json:"test_rows"`
	// Keys and Labels are aligned with the rows of Embedding.
	Keys      []string        `json:"keys"`
	Regions   []string        `json:"regions"`
	Labels    []int           `json:"labels"`
	Clusters  cluster.Summary `json:"clusters"`
	Images    []string        `json:"images"`
	Embedding *mat.Dense      `json:"-"`
}

// Run executes every stage with cfg. Errors are returned wrapped with the
// failing stage; the typed errors of each stage stay reachable through
// errors.As. Images are written only after clustering succeeded.
func Run(ctx context.Context, cfg *config.Global, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rep := &Report{RunID: uuid.NewString()}
	log = log.With(zap.String("run_id", rep.RunID))

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer store.Close()

	raw, err := store.LoadTable(ctx, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	rep.Rows, rep.Columns = raw.Shape()
	log.Info("The shape of the dataset is",
		zap.String("database", store.Path()),
		zap.String("table", cfg.Table),
		zap.Int("rows", rep.Rows),
		zap.Int("columns", rep.Columns))

	required := append([]string{cfg.IndexColumn}, cfg.RequiredColumns...)
	if err := schema.Validate(raw, required); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	log.Info("All columns exist", zap.Int("required", len(required)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prep, err := preprocess.Run(raw, preprocess.Options{
		IndexColumn: cfg.IndexColumn,
		LabelColumn: cfg.LabelColumn,
		DropColumns: cfg.DropColumns,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	rep.Missing = len(prep.Missing)
	rep.Filled = prep.Filled
	rep.Features = prep.Features.Names

	trainIdx, testIdx, err := reduce.Split(prep.Features.Rows(), cfg.TrainSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	train := prep.Features.Subset(trainIdx)
	rep.TrainRows, rep.TestRows = len(trainIdx), len(testIdx)
	rep.Keys, rep.Regions = train.Keys, train.Labels
	log.Debug("split rows", zap.Int("train", rep.TrainRows), zap.Int("test", rep.TestRows))
	if cfg.Scale && train.X != nil {
		reduce.MinMaxScale(train.X)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := reduce.NewUMAP(cfg.Seed)
	u.NNeighbors = cfg.NNeighbors
	u.MinDist = cfg.MinDist
	u.Epochs = cfg.Epochs
	emb, err := u.FitTransform(train.X)
	if err != nil {
		return nil, fmt.Errorf("reduce: %w", err)
	}
	rep.Embedding = emb
	log.Info("projected training rows", zap.Int("rows", rep.TrainRows), zap.Int("neighbors", u.NNeighbors))

	labels, err := cluster.DBSCAN{Eps: cfg.Eps, MinSamples: cfg.MinSamples}.Fit(emb)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	rep.Labels = labels
	rep.Clusters = cluster.Summarize(labels)
	log.Info("clustered embedding",
		zap.Int("clusters", rep.Clusters.Clusters),
		zap.Int("noise", rep.Clusters.Noise),
		zap.Ints("labels", rep.Clusters.Labels()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	umapFig, err := plot.Scatter(emb, train.Labels, UMAPTitle)
	if err != nil {
		return nil, fmt.Errorf("plot: %w", err)
	}
	umapFig.Path = cfg.UMAPImage
	dbscanFig, err := plot.Scatter(emb, plot.IntLabels(labels), DBSCANTitle(cfg.Eps, cfg.MinSamples))
	if err != nil {
		return nil, fmt.Errorf("plot: %w", err)
	}
	dbscanFig.Path = cfg.DBSCANImage
	written, err := plot.WriteAll(cfg.ImageWidthIn, cfg.ImageHeightIn, umapFig, dbscanFig)
	if err != nil {
		return nil, fmt.Errorf("plot: %w", err)
	}
	rep.Images = written
	log.Info("images written", zap.Strings("paths", written))
	return rep, nil
}
