package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/dataset"
	"github.com/meikuraledutech/neurons/hclnet"
	"github.com/meikuraledutech/neurons/internal/config"
	"github.com/meikuraledutech/neurons/internal/ctxlog"
	"github.com/meikuraledutech/neurons/layers"
	"github.com/meikuraledutech/neurons/train"
)

type api struct {
	// ctx outlives requests; training sessions run under it.
	ctx      context.Context
	store    neurons.Store
	sessions *registry
	training config.Training
	logger   *slog.Logger
}

func newApp(a *api) *fiber.App {
	app := fiber.New()
	app.Use(recoverer.New())
	app.Use(a.logRequests)

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", a.createSchema)
	app.Delete("/schema", a.dropSchema)

	// ── Networks (bulk) ───────────────────────────────────────────────
	app.Post("/networks", a.createNetwork)
	app.Post("/networks/import", a.importNetworks)
	app.Get("/networks/:id", a.getNetwork)
	app.Get("/networks/:id/export", a.exportNetwork)
	app.Delete("/networks/:id", a.deleteNetwork)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Post("/networks/:id/nodes", a.addNode)
	app.Get("/networks/:id/nodes", a.listNodes)
	app.Get("/networks/:id/nodes/:node", a.getNode)
	app.Put("/networks/:id/nodes/:node", a.updateNode)
	app.Delete("/networks/:id/nodes/:node", a.deleteNode)

	// ── Links ─────────────────────────────────────────────────────────
	app.Post("/networks/:id/links", a.addLink)
	app.Get("/networks/:id/links", a.listLinks)
	app.Delete("/networks/:id/links/:link", a.deleteLink)

	// ── Build & train ─────────────────────────────────────────────────
	app.Post("/networks/:id/build", a.build)
	app.Post("/networks/:id/train", a.startTraining)
	app.Get("/sessions/:sid", a.getSession)
	app.Delete("/sessions/:sid", a.stopSession)

	return app
}

func (a *api) logRequests(c fiber.Ctx) error {
	start := time.Now()
	logger := a.logger.With("method", c.Method(), "path", c.Path())
	c.SetContext(ctxlog.WithLogger(c.Context(), logger))
	err := c.Next()
	logger.Debug("request", "status", c.Response().StatusCode(), "elapsed", time.Since(start))
	return err
}

// fail maps err to a status code and writes it as {"error": ...}.
func fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := fiber.Map{"error": err.Error()}
	switch {
	case errors.Is(err, neurons.ErrInvalidGraph):
		status = fiber.StatusUnprocessableEntity
		body["reason"] = neurons.ReasonOf(err).String()
	case errors.Is(err, neurons.ErrNetworkNotFound),
		errors.Is(err, neurons.ErrNodeNotFound),
		errors.Is(err, neurons.ErrLinkNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, neurons.ErrSelfLink),
		errors.Is(err, neurons.ErrUnknownKind),
		errors.Is(err, neurons.ErrUnknownRef),
		errors.Is(err, neurons.ErrInvalidArgument):
		status = fiber.StatusBadRequest
	case errors.Is(err, layers.ErrUnsupported),
		errors.Is(err, layers.ErrParams),
		errors.Is(err, dataset.ErrParams),
		errors.Is(err, dataset.ErrFormat),
		errors.Is(err, train.ErrNoDataset):
		status = fiber.StatusUnprocessableEntity
	}
	if status == fiber.StatusInternalServerError {
		ctxlog.FromContext(c.Context()).Error("request failed", "error", err)
	}
	return c.Status(status).JSON(body)
}

func badBody(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
}

// idParam parses an int64 route parameter. When it is malformed the 400
// response is already written and ok is false.
func idParam(c fiber.Ctx, key string) (id int64, ok bool, err error) {
	id, perr := strconv.ParseInt(c.Params(key), 10, 64)
	if perr != nil {
		return 0, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid " + key + " id"})
	}
	return id, true, nil
}

func (a *api) createSchema(c fiber.Ctx) error {
	if err := a.store.CreateSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (a *api) dropSchema(c fiber.Ctx) error {
	if err := a.store.DropSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}

func (a *api) createNetwork(c fiber.Ctx) error {
	var d neurons.Descriptor
	if err := c.Bind().JSON(&d); err != nil {
		return badBody(c)
	}
	result, err := a.store.CreateNetwork(c.Context(), &d)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// importNetworks creates every network of an HCL body.
func (a *api) importNetworks(c fiber.Ctx) error {
	ds, err := hclnet.Parse(c.Body(), "request.hcl")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	created := make([]*neurons.Descriptor, 0, len(ds))
	for _, d := range ds {
		result, err := a.store.CreateNetwork(c.Context(), d)
		if err != nil {
			return fail(c, err)
		}
		created = append(created, result)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (a *api) getNetwork(c fiber.Ctx) error {
	d, err := a.store.GetNetwork(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(d)
}

func (a *api) exportNetwork(c fiber.Ctx) error {
	d, err := a.store.GetNetwork(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	src, err := hclnet.Encode(d)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/hcl")
	return c.Send(src)
}

func (a *api) deleteNetwork(c fiber.Ctx) error {
	if err := a.store.DeleteNetwork(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) addNode(c fiber.Ctx) error {
	var node neurons.NodeDescriptor
	if err := c.Bind().JSON(&node); err != nil {
		return badBody(c)
	}
	id, err := a.store.AddNode(c.Context(), c.Params("id"), &node)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (a *api) listNodes(c fiber.Ctx) error {
	nodes, err := a.store.ListNodes(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(nodes)
}

func (a *api) getNode(c fiber.Ctx) error {
	id, ok, err := idParam(c, "node")
	if !ok {
		return err
	}
	n, err := a.store.GetNode(c.Context(), c.Params("id"), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(n)
}

func (a *api) updateNode(c fiber.Ctx) error {
	id, ok, err := idParam(c, "node")
	if !ok {
		return err
	}
	var node neurons.NodeDescriptor
	if err := c.Bind().JSON(&node); err != nil {
		return badBody(c)
	}
	node.ID = id
	if err := a.store.UpdateNode(c.Context(), c.Params("id"), &node); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) deleteNode(c fiber.Ctx) error {
	id, ok, err := idParam(c, "node")
	if !ok {
		return err
	}
	if err := a.store.DeleteNode(c.Context(), c.Params("id"), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) addLink(c fiber.Ctx) error {
	var link neurons.LinkDescriptor
	if err := c.Bind().JSON(&link); err != nil {
		return badBody(c)
	}
	id, err := a.store.AddLink(c.Context(), c.Params("id"), &link)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (a *api) listLinks(c fiber.Ctx) error {
	links, err := a.store.ListLinks(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(links)
}

func (a *api) deleteLink(c fiber.Ctx) error {
	id, ok, err := idParam(c, "link")
	if !ok {
		return err
	}
	if err := a.store.DeleteLink(c.Context(), c.Params("id"), id); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// load instantiates the stored network and validates it.
func (a *api) load(ctx context.Context, networkID string) (*neurons.Network, *neurons.Container, error) {
	d, err := a.store.GetNetwork(ctx, networkID)
	if err != nil {
		return nil, nil, err
	}
	n, err := neurons.Load(d, layers.Factory{})
	if err != nil {
		return nil, nil, err
	}
	container, err := n.Build()
	if err != nil {
		return nil, nil, err
	}
	return n, container, nil
}

func (a *api) build(c fiber.Ctx) error {
	_, container, err := a.load(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"order":   container.Order(),
		"summary": container.String(),
	})
}

type trainRequest struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
}

func (a *api) startTraining(c fiber.Ctx) error {
	req := trainRequest{Epochs: a.training.Epochs, LearningRate: a.training.LearningRate}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badBody(c)
		}
	}
	if req.Epochs < 1 || req.LearningRate <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "epochs and learning_rate must be positive"})
	}

	networkID := c.Params("id")
	n, container, err := a.load(c.Context(), networkID)
	if err != nil {
		return fail(c, err)
	}
	ds := n.Source().Dataset
	if ds == nil {
		return fail(c, train.ErrNoDataset)
	}

	ctx := ctxlog.WithLogger(a.ctx, a.logger.With("network", networkID))
	s := train.Start(ctx, container, ds, train.Options{
		Epochs:    req.Epochs,
		Optimizer: train.SGD{LearningRate: req.LearningRate},
	})
	a.sessions.add(&trainingRun{Network: networkID, Session: s})
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"id": s.ID, "status": s.Status()})
}

type sessionView struct {
	ID        string              `json:"id"`
	Network   string              `json:"network"`
	Status    train.Status        `json:"status"`
	Epochs    []train.EpochReport `json:"epochs"`
	TestLoss  *float64            `json:"test_loss,omitempty"`
	TestError *float64            `json:"test_error,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func (a *api) getSession(c fiber.Ctx) error {
	run, ok := a.sessions.get(c.Params("sid"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	view := sessionView{
		ID:      run.Session.ID,
		Network: run.Network,
		Status:  run.Session.Status(),
		Epochs:  run.Session.Reports(),
	}
	if res, done := run.Session.Result(); done {
		view.Status = res.Status
		if res.Status == train.StatusDone {
			view.TestLoss, view.TestError = &res.TestLoss, &res.TestError
		}
		if res.Err != nil {
			view.Error = strings.TrimSpace(res.Err.Error())
		}
	}
	return c.JSON(view)
}

func (a *api) stopSession(c fiber.Ctx) error {
	if !a.sessions.remove(c.Params("sid")) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
