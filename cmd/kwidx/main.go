// Command kwidx builds and queries secondary keyword indexes over columnar
// Parquet files (spec §6's CLI contract), backed by a local-filesystem
// object store by default.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
	"github.com/grafana/parquet-keyword-index/internal/index/build"
	"github.com/grafana/parquet-keyword-index/internal/index/load"
	"github.com/grafana/parquet-keyword-index/internal/index/search"
	"github.com/grafana/parquet-keyword-index/internal/index/serialize"
	"github.com/grafana/parquet-keyword-index/internal/objectstore"
	"github.com/grafana/parquet-keyword-index/internal/parquetsource"
)

type globalOptions struct {
	LocalDir string `help:"local filesystem directory backing the object store." default:"./kwidx-data"`
}

func (g *globalOptions) store() (objectstore.Store, error) {
	return objectstore.NewLocal(g.LocalDir)
}

type buildCmd struct {
	SourceKey   string  `arg:"" help:"key of the source Parquet file within the object store."`
	IndexPrefix string  `arg:"" help:"key prefix to write the four index artifacts under."`
	ErrorRate   float64 `help:"target false positive rate for bloom filters." default:"0.01"`
}

func (cmd *buildCmd) Run(g *globalOptions) error {
	ctx := context.Background()
	store, err := g.store()
	if err != nil {
		return err
	}

	info, err := store.Head(ctx, cmd.SourceKey)
	if err != nil {
		return fmt.Errorf("kwidx: head source %q: %w", cmd.SourceKey, err)
	}
	data, err := store.Get(ctx, cmd.SourceKey)
	if err != nil {
		return fmt.Errorf("kwidx: read source %q: %w", cmd.SourceKey, err)
	}

	reader, err := parquetsource.Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("kwidx: open parquet source: %w", err)
	}

	cfg := build.DefaultConfig()
	cfg.ErrorRate = cmd.ErrorRate
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	pipeline := build.New(cfg, logger, prometheus.DefaultRegisterer)

	artifacts, err := pipeline.Build(ctx, reader, build.Input{
		Source: serialize.SourceInfo{
			ETag:         info.ETag,
			Size:         info.Size,
			LastModified: uint64(info.LastModified.Unix()),
		},
		SourceSizeBytes: int64(info.Size),
	})
	if err != nil {
		return fmt.Errorf("kwidx: build index: %w", err)
	}

	files := map[string][]byte{
		artifact.FileFilters:        artifacts.Filters,
		artifact.FileMetadata:       artifacts.Metadata,
		artifact.FileData:           artifacts.Data,
		artifact.FileColumnKeywords: artifacts.ColumnKeywords,
	}
	for name, payload := range files {
		key := cmd.IndexPrefix + "/" + name
		if err := store.Put(ctx, key, payload); err != nil {
			return fmt.Errorf("kwidx: write %q: %w", key, err)
		}
	}

	fmt.Printf("index written to %s\n", cmd.IndexPrefix)
	return nil
}

type queryCmd struct {
	IndexPrefix string `arg:"" help:"key prefix the index's four artifacts live under."`
	Text        string `arg:"" help:"keyword or phrase to search for."`
	Column      string `help:"restrict the search to one column." optional:""`
	Phrase      bool   `help:"treat Text as a multi-token phrase rather than a single keyword."`
}

func (cmd *queryCmd) Run(g *globalOptions) error {
	ctx := context.Background()
	store, err := g.store()
	if err != nil {
		return err
	}

	idx, err := load.Load(ctx, store, cmd.IndexPrefix)
	if err != nil {
		return fmt.Errorf("kwidx: load index %q: %w", cmd.IndexPrefix, err)
	}

	var column *uint32
	if cmd.Column != "" {
		id, ok := idx.Columns.Lookup(cmd.Column)
		if !ok {
			return fmt.Errorf("kwidx: unknown column %q", cmd.Column)
		}
		column = &id
	}

	if cmd.Phrase {
		result, err := search.NewPhraseSearcher(idx).Search(ctx, cmd.Text, column)
		if err != nil {
			return fmt.Errorf("kwidx: phrase search: %w", err)
		}
		for _, m := range result.Verified {
			colName, _ := idx.Columns.Name(m.Column)
			fmt.Printf("column=%s row_group=%d row=%d status=verified\n", colName, m.RowGroup, m.Row)
		}
		for _, m := range result.NeedsVerification {
			colName, _ := idx.Columns.Name(m.Column)
			fmt.Printf("column=%s row_group=%d row=%d status=needs_verification\n", colName, m.RowGroup, m.Row)
		}
		return nil
	}

	matches, err := search.NewKeywordSearcher(idx).Search(ctx, cmd.Text, column)
	if err != nil {
		return fmt.Errorf("kwidx: keyword search: %w", err)
	}
	for _, m := range matches {
		colName, _ := idx.Columns.Name(m.Column)
		fmt.Printf("column=%s row_group=%d row=%d-%d splits_matched=%d\n",
			colName, m.RowGroup, m.Row, m.End(), m.SplitsMatched)
	}
	return nil
}

type infoCmd struct {
	IndexPrefix string `arg:"" help:"key prefix the index's four artifacts live under."`
}

func (cmd *infoCmd) Run(g *globalOptions) error {
	ctx := context.Background()
	store, err := g.store()
	if err != nil {
		return err
	}

	idx, err := load.Load(ctx, store, cmd.IndexPrefix)
	if err != nil {
		return fmt.Errorf("kwidx: load index %q: %w", cmd.IndexPrefix, err)
	}

	info, err := idx.Info(ctx)
	if err != nil {
		return fmt.Errorf("kwidx: read index info: %w", err)
	}
	fmt.Printf("format_version:        %d\n", info.FormatVersion)
	fmt.Printf("parquet_etag:          %s\n", info.SourceETag)
	fmt.Printf("parquet_size:          %d\n", info.SourceSize)
	fmt.Printf("parquet_last_modified: %d\n", info.SourceLastModified)
	fmt.Printf("error_rate:            %g\n", info.ErrorRate)
	fmt.Printf("columns:               %d\n", info.NumColumns)
	fmt.Printf("chunks:                %d\n", info.NumChunks)
	fmt.Printf("keywords:              %d\n", info.NumKeywords)
	fmt.Printf("occurrences:           %d\n", info.NumOccurrences)
	return nil
}

var cli struct {
	globalOptions

	Build buildCmd `cmd:"" help:"build an index for a Parquet file."`
	Query queryCmd `cmd:"" help:"search an existing index for a keyword or phrase."`
	Info  infoCmd  `cmd:"" help:"print summary statistics for an index."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("kwidx"),
		kong.Description("Secondary keyword index over columnar Parquet files."),
	)
	err := ctx.Run(&cli.globalOptions)
	ctx.FatalIfErrorf(err)
}
