// Command example walks through the editor store, validation and training.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/layers"
	"github.com/meikuraledutech/neurons/postgres"
	"github.com/meikuraledutech/neurons/sqlite"
	"github.com/meikuraledutech/neurons/train"
	"gonum.org/v1/gonum/mat"
)

func main() {
	ctx := context.Background()

	// Postgres when DATABASE_URL is set, otherwise a throwaway sqlite file.
	var store neurons.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		must("connect", err)
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		dir, err := os.MkdirTemp("", "neurons-example")
		must("temp dir", err)
		defer os.RemoveAll(dir)
		s, err := sqlite.Open(filepath.Join(dir, "example.sqlite3"))
		must("open sqlite", err)
		defer s.Close()
		store = s
	}

	must("schema", store.CreateSchema(ctx))
	fmt.Println("schema created")

	// ── Bulk insert using refs ────────────────────────────────────────
	net := &neurons.Descriptor{
		ID: "regression",
		Nodes: []neurons.NodeDescriptor{
			{Ref: "data", Kind: neurons.Source, Params: json.RawMessage(`{"kind": "random", "in": 10, "out": 1, "count": 32, "valid_size": 8}`)},
			{Ref: "a", Kind: neurons.Linear, Params: json.RawMessage(`{"in": 10, "out": 5, "bias": false, "init": "ones"}`)},
			{Ref: "b", Kind: neurons.Linear, Params: json.RawMessage(`{"in": 5, "out": 1, "bias": false, "init": "ones"}`)},
			{Ref: "loss", Kind: neurons.MeanSquaredError},
		},
		Links: []neurons.LinkDescriptor{
			{InputRef: "data", OutputRef: "a"},
			{InputRef: "a", OutputRef: "b"},
			{InputRef: "b", OutputRef: "loss"},
		},
	}
	created, err := store.CreateNetwork(ctx, net)
	must("create network", err)
	fmt.Println("network created (bulk with refs)")
	printJSON(created)

	// ── Granular: a dangling node breaks validation ───────────────────
	reluID, err := store.AddNode(ctx, "regression", &neurons.NodeDescriptor{Kind: neurons.ReLU})
	must("add node", err)
	_, err = store.AddLink(ctx, "regression", &neurons.LinkDescriptor{Input: created.Nodes[1].ID, Output: reluID})
	must("add link", err)

	_, err = build(ctx, store)
	fmt.Printf("\nbuild with dangling ReLU %d: %v\n", reluID, err)
	if !errors.Is(err, neurons.ErrInvalidGraph) {
		must("expected an invalid graph", err)
	}

	must("delete node", store.DeleteNode(ctx, "regression", reluID))

	// ── Build and run ─────────────────────────────────────────────────
	n, err := build(ctx, store)
	must("build", err)
	c, err := n.Build()
	must("container", err)

	ones := mat.NewDense(10, 1, nil)
	for i := range 10 {
		ones.Set(i, 0, 1)
	}
	out, err := c.Call(ones)
	must("forward", err)
	fmt.Printf("\nforward(ones) = %g\n\n", out.At(0, 0))

	// ── Train ─────────────────────────────────────────────────────────
	s := train.Start(ctx, c, n.Source().Dataset, train.Options{Epochs: 2, Output: os.Stdout})
	res, err := s.Wait(ctx)
	must("wait", err)
	must("train", res.Err)
	fmt.Printf("session %s: %s\n", s.ID, res.Status)

	// ── Cleanup ───────────────────────────────────────────────────────
	must("delete", store.DeleteNetwork(ctx, "regression"))
	fmt.Println("\nnetwork deleted")
}

func build(ctx context.Context, store neurons.Store) (*neurons.Network, error) {
	d, err := store.GetNetwork(ctx, "regression")
	if err != nil {
		return nil, err
	}
	n, err := neurons.Load(d, layers.Factory{})
	if err != nil {
		return nil, err
	}
	if _, err := n.Build(); err != nil {
		return nil, err
	}
	return n, nil
}

func must(what string, err error) {
	if err != nil {
		slog.Error(what, "error", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
