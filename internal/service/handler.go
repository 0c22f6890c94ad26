package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/travelspend/internal/tracker"
)

// TravelServiceName is the fully-qualified name of the RPC service.
const TravelServiceName = "travelspend.v1.TravelService"

// Procedure paths.
const (
	AddTravelerProcedure    = "/" + TravelServiceName + "/AddTraveler"
	RemoveTravelerProcedure = "/" + TravelServiceName + "/RemoveTraveler"
	AddExpenseProcedure     = "/" + TravelServiceName + "/AddExpense"
	GetSummaryProcedure     = "/" + TravelServiceName + "/GetSummary"
)

type AddTravelerRequest struct {
	Name string `json:"name"`
}

type AddTravelerResponse struct {
	ID string `json:"id"`
}

type RemoveTravelerRequest struct {
	TravelerID string `json:"travelerId"`
}

type RemoveTravelerResponse struct{}

type AddExpenseRequest struct {
	Type       string  `json:"type"`
	Amount     float64 `json:"amount"`
	TravelerID string  `json:"travelerId"`
}

type AddExpenseResponse struct {
	ID string `json:"id"`
}

type GetSummaryRequest struct{}

type GetSummaryResponse struct {
	Summary tracker.View `json:"summary"`
}

// Summarizer provides the current derived view.
type Summarizer interface {
	View() tracker.View
}

// Handler adapts TravelService to Connect.
type Handler struct {
	svc     *TravelService
	summary Summarizer
}

// NewHandler creates a Handler.
func NewHandler(svc *TravelService, summary Summarizer) *Handler {
	return &Handler{svc: svc, summary: summary}
}

// AddTraveler creates a traveler.
func (h *Handler) AddTraveler(ctx context.Context, req *connect.Request[AddTravelerRequest]) (*connect.Response[AddTravelerResponse], error) {
	slog.Info("AddTraveler request received", "name", req.Msg.Name)

	id, err := h.svc.AddTraveler(ctx, req.Msg.Name)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&AddTravelerResponse{ID: id}), nil
}

// RemoveTraveler deletes a traveler and their expenses.
func (h *Handler) RemoveTraveler(ctx context.Context, req *connect.Request[RemoveTravelerRequest]) (*connect.Response[RemoveTravelerResponse], error) {
	slog.Info("RemoveTraveler request received", "traveler_id", req.Msg.TravelerID)

	if err := h.svc.RemoveTraveler(ctx, req.Msg.TravelerID); err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RemoveTravelerResponse{}), nil
}

// AddExpense records an expense.
func (h *Handler) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	slog.Info("AddExpense request received",
		"type", req.Msg.Type,
		"amount", req.Msg.Amount,
		"traveler_id", req.Msg.TravelerID,
	)

	id, err := h.svc.AddExpense(ctx, req.Msg.Type, req.Msg.Amount, req.Msg.TravelerID)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&AddExpenseResponse{ID: id}), nil
}

// GetSummary returns the tracker's current view.
func (h *Handler) GetSummary(_ context.Context, _ *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	view := h.summary.View()
	slog.Debug("GetSummary served",
		"loading", view.Loading,
		"travelers", len(view.Travelers),
		"expenses", len(view.Expenses),
	)
	return connect.NewResponse(&GetSummaryResponse{Summary: view}), nil
}

// NewTravelServiceHandler builds the HTTP handler serving every procedure and
// returns the path prefix to mount it on.
func NewTravelServiceHandler(h *Handler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AddTravelerProcedure, connect.NewUnaryHandler(AddTravelerProcedure, h.AddTraveler, opts...))
	mux.Handle(RemoveTravelerProcedure, connect.NewUnaryHandler(RemoveTravelerProcedure, h.RemoveTraveler, opts...))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, h.AddExpense, opts...))
	mux.Handle(GetSummaryProcedure, connect.NewUnaryHandler(GetSummaryProcedure, h.GetSummary, opts...))

	return "/" + TravelServiceName + "/", mux
}

// TravelServiceClient calls a remote TravelService.
type TravelServiceClient struct {
	addTraveler    *connect.Client[AddTravelerRequest, AddTravelerResponse]
	removeTraveler *connect.Client[RemoveTravelerRequest, RemoveTravelerResponse]
	addExpense     *connect.Client[AddExpenseRequest, AddExpenseResponse]
	getSummary     *connect.Client[GetSummaryRequest, GetSummaryResponse]
}

// NewTravelServiceClient creates a client for the service at baseURL.
func NewTravelServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TravelServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &TravelServiceClient{
		addTraveler:    connect.NewClient[AddTravelerRequest, AddTravelerResponse](httpClient, baseURL+AddTravelerProcedure, opts...),
		removeTraveler: connect.NewClient[RemoveTravelerRequest, RemoveTravelerResponse](httpClient, baseURL+RemoveTravelerProcedure, opts...),
		addExpense:     connect.NewClient[AddExpenseRequest, AddExpenseResponse](httpClient, baseURL+AddExpenseProcedure, opts...),
		getSummary:     connect.NewClient[GetSummaryRequest, GetSummaryResponse](httpClient, baseURL+GetSummaryProcedure, opts...),
	}
}

func (c *TravelServiceClient) AddTraveler(ctx context.Context, req *connect.Request[AddTravelerRequest]) (*connect.Response[AddTravelerResponse], error) {
	return c.addTraveler.CallUnary(ctx, req)
}

func (c *TravelServiceClient) RemoveTraveler(ctx context.Context, req *connect.Request[RemoveTravelerRequest]) (*connect.Response[RemoveTravelerResponse], error) {
	return c.removeTraveler.CallUnary(ctx, req)
}

func (c *TravelServiceClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[AddExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *TravelServiceClient) GetSummary(ctx context.Context, req *connect.Request[GetSummaryRequest]) (*connect.Response[GetSummaryResponse], error) {
	return c.getSummary.CallUnary(ctx, req)
}
