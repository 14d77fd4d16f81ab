package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tangent-backend/internal/application/cascade"
	"tangent-backend/internal/application/services"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/domain/node"
	"tangent-backend/internal/infrastructure/ingest"
	pkgerrors "tangent-backend/pkg/errors"
)

const maxUploadBytes = 25 << 20

// GraphHandler exposes the editor's mutation API over HTTP.
type GraphHandler struct {
	svc      *services.GraphService
	orch     *cascade.Orchestrator
	ingestor *ingest.Ingestor
	validate *validator.Validate
	logger   *zap.Logger
}

// NewGraphHandler creates the handler set.
func NewGraphHandler(
	svc *services.GraphService,
	orch *cascade.Orchestrator,
	ingestor *ingest.Ingestor,
	logger *zap.Logger,
) *GraphHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphHandler{
		svc:      svc,
		orch:     orch,
		ingestor: ingestor,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetGraph handles GET /graph: the full snapshot for the view layer.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	g := h.svc.Snapshot()
	nodes := make([]*node.Node, 0, g.Len())
	for _, id := range g.IDs() {
		nodes = append(nodes, g.Node(id))
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

// CreateNodeRequest is the body of POST /nodes.
type CreateNodeRequest struct {
	Type  string  `json:"type" validate:"required"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Value string  `json:"value"`
	// Bias picks which side of the target the free-position search prefers.
	Bias string `json:"bias,omitempty" validate:"omitempty,oneof=below right left above"`
}

// CreateNode handles POST /nodes.
func (h *GraphHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	bias := layout.DirBelow
	if req.Bias != "" {
		bias = layout.Direction(req.Bias)
	}
	n, err := h.svc.CreateNodeAt(node.Type(req.Type), req.X, req.Y, req.Value, bias)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, n)
}

// PatchNodeRequest is the body of PATCH /nodes/{nodeID}.
type PatchNodeRequest struct {
	Value  *string  `json:"value,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Pinned *bool    `json:"pinned,omitempty"`
}

// PatchNode handles PATCH /nodes/{nodeID}.
func (h *GraphHandler) PatchNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	if h.svc.Snapshot().Node(id) == nil {
		h.respondError(w, pkgerrors.NewNotFound("node not found"))
		return
	}
	var req PatchNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.svc.PatchNode(id, node.Patch{
		Value: req.Value, X: req.X, Y: req.Y, Pinned: req.Pinned,
	})
	h.respondJSON(w, http.StatusOK, h.svc.Snapshot().Node(id))
}

// CreateEdgeRequest is the body of POST /edges.
type CreateEdgeRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required,nefield=From"`
}

// CreateEdge handles POST /edges.
func (h *GraphHandler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var req CreateEdgeRequest
	if !h.decode(w, r, &req) {
		return
	}
	g := h.svc.Snapshot()
	if g.Node(req.From) == nil || g.Node(req.To) == nil {
		h.respondError(w, pkgerrors.NewNotFound("edge endpoint not found"))
		return
	}
	h.svc.LinkNodes(req.From, req.To)
	h.respondJSON(w, http.StatusCreated, map[string]string{"from": req.From, "to": req.To})
}

// MoveNodeRequest is the body of POST /nodes/{nodeID}/move.
type MoveNodeRequest struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
	// Pinned is set true on the first pixel of a user drag so collision
	// resolution treats the node as intentionally placed.
	Pinned *bool `json:"pinned,omitempty"`
}

// MoveNode handles POST /nodes/{nodeID}/move.
func (h *GraphHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	if h.svc.Snapshot().Node(id) == nil {
		h.respondError(w, pkgerrors.NewNotFound("node not found"))
		return
	}
	var req MoveNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.svc.MoveNode(id, req.DX, req.DY, req.Pinned)
	h.respondJSON(w, http.StatusOK, h.svc.Snapshot().Node(id))
}

// DeleteNode handles DELETE /nodes/{nodeID}. The default sweeps the node's
// exclusive subtree; ?mode=detach removes just the one node.
func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "nodeID")
	if h.svc.Snapshot().Node(id) == nil {
		h.respondError(w, pkgerrors.NewNotFound("node not found"))
		return
	}
	if r.URL.Query().Get("mode") == "detach" {
		h.svc.DeleteNodeDetach(id)
	} else {
		h.svc.DeleteNode(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitRequest is the body of POST /submit.
type SubmitRequest struct {
	NodeID string `json:"nodeId" validate:"required"`
	Query  string `json:"query" validate:"required"`
}

// Submit handles POST /submit. Validation failures are synchronous; the
// regeneration itself runs in the background and streams progress over the
// websocket hub.
func (h *GraphHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller := h.svc.Snapshot().Node(req.NodeID)
	if caller == nil {
		h.respondError(w, pkgerrors.NewNotFound("input node not found"))
		return
	}
	if caller.Type != node.TypeInput {
		h.respondError(w, pkgerrors.NewValidation("submissions start at an input node"))
		return
	}

	go func() {
		if err := h.orch.OnInputSubmit(context.Background(), req.Query, req.NodeID); err != nil {
			h.logger.Error("submission failed",
				zap.String("node", req.NodeID), zap.Error(err))
		}
	}()

	h.respondJSON(w, http.StatusAccepted, map[string]string{"nodeId": req.NodeID})
}

// Undo handles POST /undo.
func (h *GraphHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]bool{"undone": h.svc.Undo()})
}

// DimensionsRequest is the body of POST /dimensions.
type DimensionsRequest struct {
	NodeID string  `json:"nodeId" validate:"required"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// ReportDimensions handles POST /dimensions: the view layer reports a
// node's rendered size so placement and collision resolution use real
// extents.
func (h *GraphHandler) ReportDimensions(w http.ResponseWriter, r *http.Request) {
	var req DimensionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.svc.ReportDimensions(req.NodeID, node.Size{Width: req.Width, Height: req.Height})
	w.WriteHeader(http.StatusNoContent)
}

// IngestFiles handles POST /files: multipart upload, one node per parseable
// file, dropped at the x/y form fields.
func (h *GraphHandler) IngestFiles(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respondError(w, pkgerrors.NewValidation("invalid multipart form"))
		return
	}
	x, _ := strconv.ParseFloat(r.FormValue("x"), 64)
	y, _ := strconv.ParseFloat(r.FormValue("y"), 64)

	var files []ingest.File
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				h.logger.Warn("skipping unreadable upload",
					zap.String("file", fh.Filename), zap.Error(err))
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				h.logger.Warn("skipping unreadable upload",
					zap.String("file", fh.Filename), zap.Error(err))
				continue
			}
			files = append(files, ingest.File{
				Name:     fh.Filename,
				MimeType: fh.Header.Get("Content-Type"),
				Data:     data,
			})
		}
	}

	results := h.ingestor.IngestBatch(files, x, y)
	h.respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

// decode parses and validates a JSON body, writing the error response
// itself. Returns false when the request was rejected.
func (h *GraphHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, pkgerrors.NewValidation("invalid request body"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondError(w, pkgerrors.NewValidation(err.Error()))
		return false
	}
	return true
}

func (h *GraphHandler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *GraphHandler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case pkgerrors.IsValidation(err):
		status = http.StatusBadRequest
	case pkgerrors.IsNotFound(err):
		status = http.StatusNotFound
	case pkgerrors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case pkgerrors.IsExternal(err):
		status = http.StatusBadGateway
	}
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}
