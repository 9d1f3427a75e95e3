// Package main provides the WarpGraph CLI entry point.
//
// This is ambient tooling, not a spec-required surface: a thin cobra
// wrapper over pkg/warpgraph for opening a graph, committing a patch from
// the command line, and inspecting materialized state.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/orneryd/warpgraph/internal/config"
	"github.com/orneryd/warpgraph/internal/objectstore"
	"github.com/orneryd/warpgraph/internal/patch"
	"github.com/orneryd/warpgraph/internal/writerid"
	"github.com/orneryd/warpgraph/pkg/warpgraph"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "warpgraph",
		Short: "WarpGraph - multi-writer, content-addressed property graph store",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("warpgraph v%s\n", version)
		},
	})

	rootCmd.AddCommand(newAddNodeCmd())
	rootCmd.AddCommand(newMaterializeCmd())
	rootCmd.AddCommand(newWritersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (objectstore.Store, error) {
	if cfg.Store.InMemory {
		return objectstore.NewMemoryStore(), nil
	}
	return objectstore.NewBadgerStore(objectstore.BadgerOptions{
		DataDir:       cfg.Store.DataDir,
		SyncWrites:    cfg.Store.SyncWrites,
		BlobCacheSize: cfg.Store.BlobCacheSize,
	})
}

func openGraphFromFlags(graphName, writerConfigPath string) (*warpgraph.Graph, objectstore.Store, error) {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	w, err := writerid.LoadOrCreate(writerConfigPath, graphName, "")
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("resolve writer id: %w", err)
	}

	g, err := warpgraph.Open(store, graphName, warpgraph.Options{
		WriterID:        w,
		RefsRoot:        cfg.Store.RefsRoot,
		AutoMaterialize: true,
		SeekCacheSize:   cfg.Cache.MaxEntries,
		SeekCacheTTL:    cfg.Cache.TTL,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return g, store, nil
}

func newAddNodeCmd() *cobra.Command {
	var graphName, writerConfigPath string
	cmd := &cobra.Command{
		Use:   "add-node <id>",
		Short: "Commit a single NodeAdd patch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, store, err := openGraphFromFlags(graphName, writerConfigPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			commitID, err := g.Patch(ctx, func(b *patch.Builder) {
				b.AddNode(args[0])
			})
			if err != nil {
				return err
			}
			fmt.Printf("committed %s as writer %s\n", commitID, g.WriterID())
			return nil
		},
	}
	cmd.Flags().StringVar(&graphName, "graph", "default", "graph name")
	cmd.Flags().StringVar(&writerConfigPath, "writer-config", "./warpgraph-writer.json", "writer identity config file")
	return cmd
}

func newMaterializeCmd() *cobra.Command {
	var graphName, writerConfigPath string
	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Run the sync protocol and print alive node/edge counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, store, err := openGraphFromFlags(graphName, writerConfigPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			if err := g.Materialize(ctx); err != nil {
				return err
			}
			nodes, err := g.GetNodes(ctx)
			if err != nil {
				return err
			}
			edges, err := g.GetEdges(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d alive node(s), %d alive edge(s)\n", len(nodes), len(edges))
			return nil
		},
	}
	cmd.Flags().StringVar(&graphName, "graph", "default", "graph name")
	cmd.Flags().StringVar(&writerConfigPath, "writer-config", "./warpgraph-writer.json", "writer identity config file")
	return cmd
}

func newWritersCmd() *cobra.Command {
	var graphName, writerConfigPath string
	cmd := &cobra.Command{
		Use:   "writers",
		Short: "List every writer currently present in the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, store, err := openGraphFromFlags(graphName, writerConfigPath)
			if err != nil {
				return err
			}
			defer store.Close()

			writers, err := g.DiscoverWriters(context.Background())
			if err != nil {
				return err
			}
			for _, w := range writers {
				fmt.Println(w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&graphName, "graph", "default", "graph name")
	cmd.Flags().StringVar(&writerConfigPath, "writer-config", "./warpgraph-writer.json", "writer identity config file")
	return cmd
}
